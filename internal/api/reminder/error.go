package reminder

import (
	"net/http"

	"PersonalAssistant/pkg/response"
)

var (
	ErrScheduling        = response.NewError(http.StatusBadGateway, "couldn't schedule the reminder")
	ErrInvalidRecurring  = response.NewError(http.StatusUnprocessableEntity, "invalid recurring reminder")
	ErrInstructionAbsent = response.NewError(http.StatusNotFound, "no reminder scheduled")
)
