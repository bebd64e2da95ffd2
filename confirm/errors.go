package confirm

import "errors"

// ErrPartialRecord names the case of a FIFO read that delivered fewer
// bytes than one fixed-layout record. The correlator does not return it:
// such bytes are buffered for the next read rather than discarded.
var ErrPartialRecord = errors.New("confirm: partial record buffered")

// ErrMalformedMailLine is returned by ParseMailLine when a line from the
// outbound-confirmation mail file does not match the expected
// "alias file_name ACK|NACK" shape.
var ErrMalformedMailLine = errors.New("confirm: malformed mail line")
