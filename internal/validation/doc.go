// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

/*
Package validation validates API query parameters with go-playground/validator.

A single validator instance is shared process-wide so struct metadata is
parsed once. Besides the built-in tags it registers:

  - actor: a non-empty token of at most 255 printable characters without
    whitespace, the shape of anything a detection rule can capture

Failures are returned as *RequestValidationError and converted with
ToAPIError into the VALIDATION_ERROR body the status API uses:

	type ActionsQuery struct {
		Actor string `validate:"omitempty,actor"`
		Limit int    `validate:"min=1,max=1000"`
	}

	if verr := validation.ValidateStruct(&q); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
*/
package validation
