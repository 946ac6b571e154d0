// Package ticketcode mints human-shareable ticket codes of the form
// PREFIX-TIME-RANDOM, e.g. AMP-MG3K9Q2A-7H3KD9XMPQ.
package ticketcode

import (
	"crypto/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// crockford base32 without I, L, O, U so codes survive being read aloud.
const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const randomLen = 10

type Generator struct {
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	last int64
}

func New(prefix string) *Generator {
	return &Generator{
		prefix: strings.ToUpper(prefix),
		now:    time.Now,
	}
}

// Generate never fails. The time segment never decreases within one
// Generator even if the wall clock steps backwards.
func (g *Generator) Generate() string {
	g.mu.Lock()
	ms := g.now().UnixMilli()
	if ms < g.last {
		ms = g.last
	}
	g.last = ms
	g.mu.Unlock()

	var b strings.Builder
	b.Grow(len(g.prefix) + 2 + 9 + randomLen)
	b.WriteString(g.prefix)
	b.WriteByte('-')
	b.WriteString(strings.ToUpper(strconv.FormatInt(ms, 36)))
	b.WriteByte('-')
	b.WriteString(randomSegment(randomLen))

	return b.String()
}

func randomSegment(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("ticketcode: crypto/rand unavailable: " + err.Error())
	}

	for i, c := range buf {
		buf[i] = alphabet[c&31]
	}

	return string(buf)
}
