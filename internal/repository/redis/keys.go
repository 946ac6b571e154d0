package redisrepo

import "fmt"

const ns = "amparena:v1"

func KeyTicketCount() string {
	return ns + ":count:tickets:confirmed"
}

func KeySignupCount() string {
	return ns + ":count:signups"
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdemConfirm(idemKey string) string {
	return fmt.Sprintf("%s:idem:confirm:%s", ns, idemKey)
}

func ChannelActivity() string {
	return ns + ":activity"
}
