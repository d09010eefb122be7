package http_utils

// BaseResponse is the envelope every HTTP response shares.
type BaseResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DataResponse wraps a successful response payload.
type DataResponse struct {
	BaseResponse
	Data any `json:"data"`
}

type ValidationErrorResponse struct {
	BaseResponse
	Errors []string `json:"errors"`
}

func NewBaseResponse(success bool, msg string) BaseResponse {
	return BaseResponse{
		Success: success,
		Message: msg,
	}
}

func NewDataResponse(msg string, data any) DataResponse {
	return DataResponse{
		BaseResponse: NewBaseResponse(true, msg),
		Data:         data,
	}
}
