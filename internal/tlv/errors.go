package tlv

import "fmt"

// PayloadTooLargeError is returned when a value does not fit the 1-byte length field
type PayloadTooLargeError struct {
	Tag  Tag
	Size int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("tlv: tag %d (%s) value is %d bytes, max %d", e.Tag, e.Tag, e.Size, MaxValueLength)
}

// NewPayloadTooLargeError creates a new payload too large error
func NewPayloadTooLargeError(tag Tag, size int) *PayloadTooLargeError {
	return &PayloadTooLargeError{Tag: tag, Size: size}
}

// MalformedPayloadError is returned when an encoded payload cannot be decoded
type MalformedPayloadError struct {
	Offset int
	Reason string
	Cause  error
}

func (e *MalformedPayloadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tlv: malformed payload at offset %d: %s (%v)", e.Offset, e.Reason, e.Cause)
	}
	return fmt.Sprintf("tlv: malformed payload at offset %d: %s", e.Offset, e.Reason)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Cause
}

// NewMalformedPayloadError creates a new malformed payload error
func NewMalformedPayloadError(offset int, reason string, cause error) *MalformedPayloadError {
	return &MalformedPayloadError{Offset: offset, Reason: reason, Cause: cause}
}
