// Package wfs implements the WFS 2.0.0 response builder, the WFS-T
// transaction engine, and KVP parameter normalization (§4.E, §4.F, §4.G).
package wfs

import (
	"fmt"
	"net/http"
	"strings"
)

// Error carries an OWS exceptionCode (§4.F, §7). A domain error anywhere
// in response building or transaction execution is reported this way
// rather than as a generic Go error reaching the caller. Status optionally
// overrides the HTTP status the request boundary maps this error to; zero
// means "infer from Code" (see StatusForErr).
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Exception codes used throughout (§4.F "Errors").
const (
	CodeInvalidParameterValue = "InvalidParameterValue"
	CodeOperationNotSupported = "OperationNotSupported"
	CodeNoApplicableCode      = "NoApplicableCode"
)

// StatusForErr maps an error returned by the wfs package to the HTTP status
// the request boundary should respond with (§6, §7). A nil err means
// success (200). A wfs.Error's explicit Status wins when set; otherwise
// the status follows its exceptionCode, and any other error is a 500.
func StatusForErr(err error) int {
	if err == nil {
		return http.StatusOK
	}
	werr, ok := err.(Error)
	if !ok {
		return http.StatusInternalServerError
	}
	if werr.Status != 0 {
		return werr.Status
	}
	switch werr.Code {
	case CodeInvalidParameterValue, CodeOperationNotSupported:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ExceptionReport renders an ows:ExceptionReport document for code/message.
func ExceptionReport(code, message string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<ows:ExceptionReport xmlns:ows="http://www.opengis.net/ows/1.1" version="2.0.0">` +
		`<ows:Exception exceptionCode="` + code + `">` +
		`<ows:ExceptionText>` + escapeXMLText(message) + `</ows:ExceptionText>` +
		`</ows:Exception>` +
		`</ows:ExceptionReport>`
}

// errToExceptionReport maps any error into an ExceptionReport document,
// unwrapping a wfs.Error for its code and falling back to NoApplicableCode
// for anything else (§4.F "Errors").
func errToExceptionReport(err error) string {
	if werr, ok := err.(Error); ok {
		return ExceptionReport(werr.Code, werr.Message)
	}
	return ExceptionReport(CodeNoApplicableCode, err.Error())
}

func escapeXMLText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
