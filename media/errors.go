package media

import "fmt"

// Condition a controller failure tagged with an HTTP status-like severity.
// Status 4XX marks user-facing input or state problems, 5XX internal or
// upstream failures.
type Condition struct {
	// Status HTTP status-like severity
	Status int
	// Message user-facing description
	Message string
	// Cause original failure, when one exists
	Cause error
}

func (c Condition) Error() string {
	if c.Cause != nil {
		return fmt.Sprintf("%s: %s", c.Message, c.Cause.Error())
	}
	return c.Message
}

func (c Condition) Unwrap() error {
	return c.Cause
}

/*
NewCondition define a new condition

	@param status int - HTTP status-like severity
	@param message string - user-facing description
	@return new condition
*/
func NewCondition(status int, message string) Condition {
	return Condition{Status: status, Message: message}
}

/*
NewConditionWithCause define a new condition wrapping an original failure

	@param status int - HTTP status-like severity
	@param message string - user-facing description
	@param cause error - original failure
	@return new condition
*/
func NewConditionWithCause(status int, message string, cause error) Condition {
	return Condition{Status: status, Message: message, Cause: cause}
}
