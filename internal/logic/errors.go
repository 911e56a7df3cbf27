package logic

import (
	"errors"
	"fmt"
)

var (
	ErrConversionRateNotFound = errors.New("conversion rate not found")
	ErrBountyNotFound         = errors.New("bounty not found")
	ErrProfileNotFound        = errors.New("profile not found")
	ErrFulfillmentNotFound    = errors.New("fulfillment not found")
	ErrInvalidSyncRequest     = errors.New("network and either a bounty id or github url are required")
)

// 申请流程的拒绝原因
var (
	ErrProjectTypeFulfilled = errors.New("project type already fulfilled")
	ErrTooManyActive        = errors.New("too many active bounties")
	ErrSlashed              = errors.New("profile was slashed by staff")
	ErrAlreadyStarted       = errors.New("interest already exists")
	ErrForbidden            = errors.New("forbidden")
	ErrNoPendingInterest    = errors.New("no pending interest")
	ErrNoInterest           = errors.New("no interest")
	ErrMissingWorker        = errors.New("missing worker")
)

// InterestRefusal 带面向用户提示的拒绝
type InterestRefusal struct {
	Err     error
	Message string
}

func (e *InterestRefusal) Error() string { return e.Message }

func (e *InterestRefusal) Unwrap() error { return e.Err }

func refuse(err error, format string, args ...interface{}) error {
	return &InterestRefusal{Err: err, Message: fmt.Sprintf(format, args...)}
}

// v1 接口状态码
const (
	CodeSuccess      = 204
	CodeDuplicate    = 303
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeNotFound     = 404
	CodeIllegalState = 405
	CodeGone         = 410
)

// BusinessError 业务错误，Code 直接返回给调用方
type BusinessError struct {
	Code    int
	Message string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

func businessError(code int, format string, args ...interface{}) *BusinessError {
	return &BusinessError{Code: code, Message: fmt.Sprintf(format, args...)}
}
