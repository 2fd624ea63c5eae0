package models

import "errors"

// Application-wide standard errors
var (
	// Save Store Errors
	ErrSaveNotFound      = errors.New("save record not found")
	ErrCorruptSaveRecord = errors.New("save record is corrupt")

	// AI Generation Errors
	ErrAIGenerationFailed = errors.New("ai text generation failed")

	// Session Errors
	ErrCharacterNotFound      = errors.New("character not found in session")
	ErrNoPendingDevelopments  = errors.New("no pending developments to choose from")
	ErrInvalidDevelopmentPick = errors.New("development choice out of range")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidInput   = errors.New("invalid input data")
)
