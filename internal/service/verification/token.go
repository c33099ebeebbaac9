package verification

import (
	"strconv"
	"strings"
)

// TokenMarker prefixes the callback data of challenge buttons.
const TokenMarker = "notabot"

// Token returns the callback data binding a challenge to userID.
func Token(userID int64) string {
	return TokenMarker + "_" + strconv.FormatInt(userID, 10)
}

// ParseToken extracts the bound user id from callback data.
// ok is false for data that does not belong to a challenge button.
func ParseToken(data string) (userID int64, ok bool) {
	rest, found := strings.CutPrefix(data, TokenMarker+"_")
	if !found || rest == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	// canonical decimal form only: rejects "+42", "042"
	if strconv.FormatInt(id, 10) != rest {
		return 0, false
	}
	return id, true
}
