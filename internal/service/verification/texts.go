package verification

import (
	"fmt"
	"html"

	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
)

const (
	buttonText      = "Ich bin kein Bot!"
	notForYouText   = "Dieser Button ist nicht für dich!"
	challengeFormat = "Willkommen in %s, %s!\n\nUm Spam zu verhindern bitte ich dich, den Button unten zu drücken. Danke!"
	confirmFormat   = "%s, danke, dass du dich verifiziert hast. Ich werde in anderen Gruppen nicht mehr fragen."
)

// Mention renders an HTML link to the user's profile.
func Mention(u chat.User) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, u.ID, html.EscapeString(u.DisplayName()))
}

func challengeText(chatTitle string, u chat.User) string {
	return fmt.Sprintf(challengeFormat, html.EscapeString(chatTitle), Mention(u))
}

func confirmationText(u chat.User) string {
	return fmt.Sprintf(confirmFormat, Mention(u))
}
