package common

// Maximum lengths of various string input fields
const (
	MaxLenUsername = 50
	MaxLenPassword = 50
	MaxLenTitle    = 100
	MaxLenBody     = 2000
)

// DeactivatedUsername is displayed in place of authors, that could not be
// found
const DeactivatedUsername = "[deactivated]"
