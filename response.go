package ews

import (
	"strings"
)

// ResponseClass is the outcome class of one sub-result.
type ResponseClass string

const (
	ResponseClassSuccess ResponseClass = "Success"
	ResponseClassWarning ResponseClass = "Warning"
	ResponseClassError   ResponseClass = "Error"
)

// ResponseCode is the detailed code carried by a sub-result or SOAP fault.
type ResponseCode string

// Common response codes.
const (
	ResponseCodeNoError                       ResponseCode = "NoError"
	ResponseCodeErrorAccessDenied             ResponseCode = "ErrorAccessDenied"
	ResponseCodeErrorChangeKeyRequired        ResponseCode = "ErrorChangeKeyRequired"
	ResponseCodeErrorConnectionFailed         ResponseCode = "ErrorConnectionFailed"
	ResponseCodeErrorExceededConnectionCount  ResponseCode = "ErrorExceededConnectionCount"
	ResponseCodeErrorFolderNotFound           ResponseCode = "ErrorFolderNotFound"
	ResponseCodeErrorInternalServerError      ResponseCode = "ErrorInternalServerError"
	ResponseCodeErrorInvalidIdMalformed       ResponseCode = "ErrorInvalidIdMalformed"
	ResponseCodeErrorInvalidRequest           ResponseCode = "ErrorInvalidRequest"
	ResponseCodeErrorInvalidServerVersion     ResponseCode = "ErrorInvalidServerVersion"
	ResponseCodeErrorInvalidSubscription      ResponseCode = "ErrorInvalidSubscription"
	ResponseCodeErrorIrresolvableConflict     ResponseCode = "ErrorIrresolvableConflict"
	ResponseCodeErrorItemNotFound             ResponseCode = "ErrorItemNotFound"
	ResponseCodeErrorMissedNotificationEvents ResponseCode = "ErrorMissedNotificationEvents"
	ResponseCodeErrorSchemaValidation         ResponseCode = "ErrorSchemaValidation"
	ResponseCodeErrorServerBusy               ResponseCode = "ErrorServerBusy"
	ResponseCodeErrorSubscriptionNotFound     ResponseCode = "ErrorSubscriptionNotFound"
	ResponseCodeErrorTimeoutExpired           ResponseCode = "ErrorTimeoutExpired"
	ResponseCodeErrorExpiredSubscription      ResponseCode = "ErrorExpiredSubscription"
)

// ServiceResult is the status part shared by every sub-result of a
// multi-result envelope.
type ServiceResult struct {
	// Class is the outcome class (Success, Warning, Error).
	Class ResponseClass
	// Code is the detailed response code.
	Code ResponseCode
	// Message is the server supplied human-readable text.
	Message string
	// DescriptiveLinkKey is an optional numeric hint attached to errors.
	DescriptiveLinkKey int
	// Details holds name/value pairs from the MessageXml element.
	Details map[string]string
}

// Succeeded reports whether the sub-result is not an error.
// Warnings count as success.
func (r *ServiceResult) Succeeded() bool {
	return r.Class != ResponseClassError
}

// Result returns r. Types that embed ServiceResult satisfy interfaces
// that need access to the status part through it.
func (r *ServiceResult) Result() *ServiceResult {
	return r
}

// Err returns nil for successful results and a *RemoteOperationError for
// failed ones. index is the position of the result in its envelope.
func (r *ServiceResult) Err(index int) error {
	if r.Succeeded() {
		return nil
	}
	return &RemoteOperationError{
		Index:   index,
		Class:   r.Class,
		Code:    r.Code,
		Message: r.Message,
		Details: r.Details,
	}
}

// String returns "Class Code: Message".
func (r *ServiceResult) String() string {
	var b strings.Builder
	b.WriteString(string(r.Class))
	if r.Code != "" {
		b.WriteByte(' ')
		b.WriteString(string(r.Code))
	}
	if r.Message != "" {
		b.WriteString(": ")
		b.WriteString(r.Message)
	}
	return b.String()
}
