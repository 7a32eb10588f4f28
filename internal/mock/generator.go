// Package mock drives synthetic classmates through the relay so the client
// has traffic to show without a real class.
package mock

import (
	"context"
	"math/rand"
	"time"

	"github.com/coursehub/realtime/internal/auth"
	"github.com/coursehub/realtime/internal/relay"
	"github.com/rs/zerolog"
)

var personas = []auth.Identity{
	{UserID: "bot-ada", Username: "ada"},
	{UserID: "bot-grace", Username: "grace"},
	{UserID: "bot-linus", Username: "linus"},
}

var chatLines = []string{
	"Can you go over the last slide again?",
	"The recursion example finally clicked for me",
	"Is the quiz open book?",
	"Thanks, that helps!",
	"Which chapter covers this?",
	"I got a different answer for part b",
}

var reactions = []string{"👏", "🎉", "🔥", "🤔", "👍"}

var announcements = []struct{ kind, title, body string }{
	{"announcement", "Office hours moved", "Office hours are now **Thursday 3pm** in room 204."},
	{"grade", "Quiz graded", "Your score for *Quiz 3* is available."},
	{"reply", "New reply", "grace replied to your post in **Week 4 discussion**."},
	{"reminder", "Assignment due", "Problem set 5 is due tomorrow at `23:59`."},
}

type botKey struct {
	kind    relay.Kind
	room    string
	persona int
}

// Generator emits one round of synthetic activity per tick into every room a
// real client has open.
type Generator struct {
	hub      *relay.Hub
	interval time.Duration
	log      zerolog.Logger
	rng      *rand.Rand

	bots map[botKey]*relay.Bot
	tick int
}

func NewGenerator(hub *relay.Hub, interval time.Duration, seed int64, log zerolog.Logger) *Generator {
	return &Generator{
		hub:      hub,
		interval: interval,
		log:      log,
		rng:      rand.New(rand.NewSource(seed)),
		bots:     make(map[botKey]*relay.Bot),
	}
}

func (g *Generator) Start(ctx context.Context) {
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	defer g.leaveAll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Step()
		}
	}
}

// Step advances the simulation by one tick. It is not safe for concurrent use.
func (g *Generator) Step() {
	g.tick++
	active := map[botKey]bool{}

	for _, id := range g.hub.ActiveRooms(relay.KindDiscussion) {
		g.stepDiscussion(id, active)
	}
	for _, id := range g.hub.ActiveRooms(relay.KindLiveClass) {
		g.stepClass(id, active)
	}
	if g.tick%5 == 0 {
		for _, user := range g.hub.ActiveRooms(relay.KindNotifications) {
			a := announcements[g.rng.Intn(len(announcements))]
			n, _ := g.hub.Notify(user, relay.Notification{Kind: a.kind, Title: a.title, Message: a.body})
			g.log.Debug().Str("user", user).Str("id", n.ID).Msg("mock notification")
		}
	}

	for key, bot := range g.bots {
		if !active[key] {
			bot.Leave()
			delete(g.bots, key)
		}
	}
}

func (g *Generator) stepDiscussion(threadID string, active map[botKey]bool) {
	persona := g.tick % len(personas)
	key := botKey{kind: relay.KindDiscussion, room: threadID, persona: persona}

	// Every ninth tick the thread's bots drop out and rejoin on the next tick.
	if g.tick%9 == 0 {
		return
	}
	bot := g.ensure(key)
	active[key] = true
	for k := range g.bots {
		if k.kind == relay.KindDiscussion && k.room == threadID {
			active[k] = true
		}
	}

	switch g.tick % 4 {
	case 0, 1:
		g.send(bot, map[string]string{"type": "typing"})
	default:
		g.send(bot, map[string]string{"type": "stop_typing"})
	}
}

func (g *Generator) stepClass(sessionID string, active map[botKey]bool) {
	for i := range 2 {
		key := botKey{kind: relay.KindLiveClass, room: sessionID, persona: i}
		active[key] = true
		bot := g.ensure(key)
		if (g.tick+i)%2 == 0 {
			line := chatLines[g.rng.Intn(len(chatLines))]
			g.send(bot, map[string]string{"type": "chat_message", "message": line})
		}
		if (g.tick+i)%3 == 0 {
			g.send(bot, map[string]string{"type": "reaction", "emoji": reactions[g.rng.Intn(len(reactions))]})
		}
	}
}

func (g *Generator) ensure(key botKey) *relay.Bot {
	if bot, ok := g.bots[key]; ok {
		return bot
	}
	bot := g.hub.AttachBot(key.kind, key.room, personas[key.persona])
	g.bots[key] = bot
	return bot
}

func (g *Generator) send(bot *relay.Bot, frame map[string]string) {
	if err := bot.Send(frame); err != nil {
		g.log.Warn().Err(err).Str("bot", bot.Identity().Username).Msgf("mock %s", frame["type"])
	}
}

func (g *Generator) leaveAll() {
	for key, bot := range g.bots {
		bot.Leave()
		delete(g.bots, key)
	}
}
