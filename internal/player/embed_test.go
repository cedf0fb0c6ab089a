package player

import (
	"encoding/json"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/earworm/internal/catalog"
	"github.com/llehouerou/earworm/internal/loop"
)

var embedTrack = catalog.Track{
	ID:         "4uLU6hMCjMI75M1A2tKUQC",
	Title:      "Song B",
	Artist:     "Artist",
	PreviewURL: "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
}

func newEmbed(t *testing.T) (*loop.Loop, *EmbedProvider, *MockChannel, *recorder) {
	t.Helper()
	l := loop.New()
	t.Cleanup(l.Close)
	ch := NewMockChannel()
	rec := &recorder{l: l}
	var p *EmbedProvider
	do(t, l, func() {
		p = NewEmbedProvider(l, ch, rec.emit, DefaultConfig(), nil)
	})
	return l, p, ch, rec
}

func update(t *testing.T, nonce string, u PlaybackUpdate) Message {
	t.Helper()
	data, err := json.Marshal(u)
	require.NoError(t, err)
	return Message{Type: MsgPlaybackUpdate, Nonce: nonce, Data: data}
}

func TestEmbed_LoadNavigatesWithNonce(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l, p, ch, _ := newEmbed(t)

		do(t, l, func() { p.Load(embedTrack) })

		sent := ch.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, CmdNavigate, sent[0].Type)
		assert.Equal(t, embedTrack.PreviewURL, sent[0].URI)
		assert.Equal(t, p.Nonce(), sent[0].Nonce)
	})
}

func TestEmbed_LoadedSchedulesInitialize(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l, p, ch, _ := newEmbed(t)
		do(t, l, func() { p.Load(embedTrack) })

		ch.Deliver(Message{Type: MsgLoaded, Nonce: p.Nonce()})
		// Duplicate confirmation does not schedule twice
		ch.Deliver(Message{Type: MsgLoaded, Nonce: p.Nonce()})
		synctest.Wait()
		assert.Equal(t, []string{CmdNavigate}, ch.SentTypes())

		time.Sleep(DefaultInitDelay)
		synctest.Wait()
		assert.Equal(t, []string{CmdNavigate, CmdInitialize}, ch.SentTypes())
	})
}

func TestEmbed_ReadyOnAcknowledgement(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l, p, ch, rec := newEmbed(t)
		do(t, l, func() { p.Load(embedTrack) })

		ch.Deliver(Message{Type: MsgReady, Nonce: p.Nonce()})
		ch.Deliver(Message{Type: MsgReady, Nonce: p.Nonce()})
		synctest.Wait()

		readies := rec.readies(t)
		require.Len(t, readies, 1)
		assert.Equal(t, ReadyNative, readies[0].Reason)

		time.Sleep(10 * time.Second)
		synctest.Wait()
		assert.Len(t, rec.readies(t), 1)
	})
}

func TestEmbed_ReadyInferredFromPlaybackUpdate(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l, p, ch, rec := newEmbed(t)
		do(t, l, func() { p.Load(embedTrack) })

		ch.Deliver(update(t, p.Nonce(), PlaybackUpdate{Paused: true, DurationMs: 29_000}))
		synctest.Wait()

		events := rec.snapshot(t)
		require.Len(t, events, 2)
		assert.Equal(t, EventReady{Reason: ReadyInferred}, events[0])
		assert.Equal(t, EventMetadata{Length: 29 * time.Second}, events[1])
	})
}

func TestEmbed_WatchdogFiresAtTimeout(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l, p, _, rec := newEmbed(t)
		start := time.Now()
		do(t, l, func() { p.Load(embedTrack) })

		time.Sleep(DefaultReadyTimeout - time.Millisecond)
		synctest.Wait()
		assert.Empty(t, rec.readies(t))

		time.Sleep(time.Millisecond)
		synctest.Wait()
		readies := rec.readies(t)
		require.Len(t, readies, 1)
		assert.Equal(t, ReadyWatchdog, readies[0].Reason)
		assert.Equal(t, DefaultReadyTimeout, time.Since(start))
	})
}

func TestEmbed_PlayReinitializesWithoutHandshake(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l, p, ch, rec := newEmbed(t)
		do(t, l, func() { p.Load(embedTrack) })
		time.Sleep(DefaultReadyTimeout)
		synctest.Wait()

		w := Window{Offset: 4 * time.Second, Duration: 3 * time.Second}
		do(t, l, func() { p.Play(w) })
		assert.Equal(t, []string{CmdNavigate, CmdInitialize}, ch.SentTypes())

		time.Sleep(DefaultPlayGrace)
		synctest.Wait()
		sent := ch.Sent()
		require.Len(t, sent, 4)
		assert.Equal(t, CmdSeek, sent[2].Type)
		assert.Equal(t, int64(4000), sent[2].PositionMs)
		assert.Equal(t, CmdPlay, sent[3].Type)
		assert.Equal(t, 1, countOf[EventStarted](rec.snapshot(t)))

		time.Sleep(w.Duration)
		synctest.Wait()
		assert.Equal(t, CmdPause, ch.Sent()[4].Type)
		assert.Equal(t, 1, countOf[EventEnded](rec.snapshot(t)))
	})
}

func TestEmbed_PlayAfterHandshakeSkipsInitialize(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l, p, ch, _ := newEmbed(t)
		do(t, l, func() { p.Load(embedTrack) })
		ch.Deliver(Message{Type: MsgReady, Nonce: p.Nonce()})
		synctest.Wait()

		do(t, l, func() { p.Play(Window{Duration: time.Second}) })
		time.Sleep(DefaultPlayGrace)
		synctest.Wait()

		// Zero offset sends no seek
		assert.Equal(t, []string{CmdNavigate, CmdPlay}, ch.SentTypes())
	})
}

func TestEmbed_StopRewinds(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l, p, ch, rec := newEmbed(t)
		do(t, l, func() { p.Load(embedTrack) })
		ch.Deliver(Message{Type: MsgReady, Nonce: p.Nonce()})
		synctest.Wait()

		w := Window{Offset: 2 * time.Second, Duration: 5 * time.Second}
		do(t, l, func() { p.Play(w) })
		time.Sleep(DefaultPlayGrace + time.Second)
		synctest.Wait()
		do(t, l, func() { p.Stop() })

		sent := ch.Sent()
		require.GreaterOrEqual(t, len(sent), 2)
		assert.Equal(t, CmdPause, sent[len(sent)-2].Type)
		assert.Equal(t, CmdSeek, sent[len(sent)-1].Type)
		assert.Equal(t, int64(2000), sent[len(sent)-1].PositionMs)

		time.Sleep(10 * time.Second)
		synctest.Wait()
		assert.Zero(t, countOf[EventEnded](rec.snapshot(t)))
	})
}

func TestEmbed_StopDuringGraceCancelsPlay(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l, p, ch, rec := newEmbed(t)
		do(t, l, func() { p.Load(embedTrack) })
		ch.Deliver(Message{Type: MsgReady, Nonce: p.Nonce()})
		synctest.Wait()

		do(t, l, func() { p.Play(Window{Duration: time.Second}) })
		do(t, l, func() { p.Stop() })
		time.Sleep(5 * time.Second)
		synctest.Wait()

		assert.NotContains(t, ch.SentTypes(), CmdPlay)
		assert.Zero(t, countOf[EventStarted](rec.snapshot(t)))
	})
}

func TestEmbed_DropsMessagesForOtherInstances(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l, p, ch, rec := newEmbed(t)
		do(t, l, func() { p.Load(embedTrack) })

		ch.Deliver(Message{Type: MsgReady, Nonce: "someone-else"})
		synctest.Wait()
		assert.Empty(t, rec.readies(t))

		// Untagged messages are accepted
		ch.Deliver(Message{Type: MsgReady})
		synctest.Wait()
		assert.Len(t, rec.readies(t), 1)
	})
}

func TestEmbed_MalformedMessagesIgnored(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l, p, ch, rec := newEmbed(t)
		do(t, l, func() { p.Load(embedTrack) })

		ch.Deliver(Message{Type: "bogus", Nonce: p.Nonce()})
		ch.Deliver(Message{Type: MsgPlaybackUpdate, Nonce: p.Nonce(), Data: json.RawMessage(`{"paused":`)})
		ch.Deliver(Message{})
		synctest.Wait()

		assert.Empty(t, rec.snapshot(t))
		assert.Equal(t, 1, ch.Subscribers())

		// Channel keeps working
		ch.Deliver(Message{Type: MsgReady, Nonce: p.Nonce()})
		synctest.Wait()
		assert.Len(t, rec.readies(t), 1)
	})
}

func TestEmbed_StatusReconciliation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l, p, ch, rec := newEmbed(t)
		do(t, l, func() { p.Load(embedTrack) })
		ch.Deliver(Message{Type: MsgReady, Nonce: p.Nonce()})
		synctest.Wait()

		ch.Deliver(update(t, p.Nonce(), PlaybackUpdate{Paused: false}))
		ch.Deliver(update(t, p.Nonce(), PlaybackUpdate{Paused: false}))
		ch.Deliver(update(t, p.Nonce(), PlaybackUpdate{Paused: true}))
		synctest.Wait()

		var statuses []EventStatus
		for _, e := range rec.snapshot(t) {
			if s, ok := e.(EventStatus); ok {
				statuses = append(statuses, s)
			}
		}
		assert.Equal(t, []EventStatus{{Playing: true}, {Playing: false}}, statuses)
	})
}

func TestEmbed_RemotePauseDropsSnippet(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l, p, ch, rec := newEmbed(t)
		do(t, l, func() { p.Load(embedTrack) })
		ch.Deliver(Message{Type: MsgReady, Nonce: p.Nonce()})
		synctest.Wait()

		w := Window{Offset: 3 * time.Second, Duration: 5 * time.Second}
		do(t, l, func() { p.Play(w) })
		time.Sleep(DefaultPlayGrace)
		synctest.Wait()

		// The remote has not picked up the play command yet
		ch.Deliver(update(t, p.Nonce(), PlaybackUpdate{Paused: true}))
		synctest.Wait()
		assert.Zero(t, countOf[EventPaused](rec.snapshot(t)))

		ch.Deliver(update(t, p.Nonce(), PlaybackUpdate{Paused: false}))
		time.Sleep(time.Second)
		ch.Deliver(update(t, p.Nonce(), PlaybackUpdate{Paused: true}))
		synctest.Wait()
		assert.Equal(t, 1, countOf[EventPaused](rec.snapshot(t)))
		last := ch.Sent()[len(ch.Sent())-1]
		assert.Equal(t, CmdSeek, last.Type)
		assert.Equal(t, int64(3000), last.PositionMs)

		// Auto-stop was cancelled
		time.Sleep(10 * time.Second)
		synctest.Wait()
		assert.Zero(t, countOf[EventEnded](rec.snapshot(t)))
		assert.NotEqual(t, CmdPause, ch.Sent()[len(ch.Sent())-1].Type)
	})
}

func TestEmbed_ErrorBeforeReadyIsLoadFailure(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l, p, ch, rec := newEmbed(t)
		do(t, l, func() { p.Load(embedTrack) })

		ch.Deliver(Message{Type: MsgError, Nonce: p.Nonce(), Data: json.RawMessage(`{"message":"track unavailable"}`)})
		synctest.Wait()

		events := rec.snapshot(t)
		require.Len(t, events, 2)
		failed, ok := events[0].(EventFailed)
		require.True(t, ok)
		assert.ErrorIs(t, failed.Err, ErrLoadFailure)
		assert.ErrorContains(t, failed.Err, "track unavailable")
		assert.Equal(t, EventReady{Reason: ReadyLoadError}, events[1])
	})
}

func TestEmbed_SendErrorsAreNotStateChanges(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l, p, ch, rec := newEmbed(t)
		ch.SendErr = errors.New("socket closed")
		do(t, l, func() { p.Load(embedTrack) })
		ch.Deliver(Message{Type: MsgReady, Nonce: p.Nonce()})
		synctest.Wait()

		do(t, l, func() { p.Play(Window{Duration: time.Second}) })
		time.Sleep(DefaultPlayGrace)
		synctest.Wait()

		events := rec.snapshot(t)
		assert.Zero(t, countOf[EventFailed](events))
		assert.Equal(t, 1, countOf[EventStarted](events))
	})
}

func TestEmbed_DisposeDetachesAndCancels(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l, p, ch, rec := newEmbed(t)
		do(t, l, func() { p.Load(embedTrack) })
		ch.Deliver(Message{Type: MsgLoaded, Nonce: p.Nonce()})
		synctest.Wait()

		do(t, l, func() { p.Dispose() })
		sentBefore := len(ch.Sent())

		time.Sleep(10 * time.Second)
		synctest.Wait()

		assert.Zero(t, ch.Subscribers())
		assert.Len(t, ch.Sent(), sentBefore, "no initialize after dispose")
		assert.Empty(t, rec.snapshot(t), "no watchdog after dispose")
	})
}

func TestEmbed_FallbackLength(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		_, p, _, _ := newEmbed(t)
		assert.Equal(t, DefaultUnknownLengthCeiling, p.FallbackLength())
	})
}
