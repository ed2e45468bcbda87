package server

import "regexp"

var idPattern = regexp.MustCompile(`^[a-z0-9-]{1,64}$`)

func validateID(id string) bool {
	return idPattern.MatchString(id)
}
