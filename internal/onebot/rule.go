package onebot

import "slices"

// Rule decides whether a matcher applies to an event.
type Rule func(evt *Event) bool

// Permission decides whether the acting user may trigger a matcher.
type Permission func(evt *Event) bool

// ToMeRule accepts events addressed to the bot.
func ToMeRule(nicknames []string) Rule {
	return func(evt *Event) bool {
		return evt.ToMe(nicknames)
	}
}

// CommandRule accepts messages whose text, after any leading nickname, is
// exactly one of the given commands.
func CommandRule(nicknames []string, commands ...string) Rule {
	return func(evt *Event) bool {
		if !evt.IsMessage() {
			return false
		}
		return slices.Contains(commands, evt.CommandText(nicknames))
	}
}

// PokeRule accepts poke notifications.
func PokeRule() Rule {
	return func(evt *Event) bool {
		return evt.IsPoke()
	}
}

// SuperuserPermission admits only the listed user ids.
func SuperuserPermission(superusers []string) Permission {
	return func(evt *Event) bool {
		return slices.Contains(superusers, evt.UserKey())
	}
}
