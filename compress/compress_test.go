package compress

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/config"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/logging"
)

func newCompressor() *Compressor {
	return New(config.DefaultConfig().Compressor, logging.NoOpLogger{})
}

func exchanges(n int, filler string) []core.Turn {
	var turns []core.Turn
	for i := 0; i < n; i++ {
		turns = append(turns,
			core.NewUserTurn(fmt.Sprintf("user message %d %s", i, filler)),
			core.NewHandlerTurn(core.HandlerSocratic, fmt.Sprintf("handler reply %d %s", i, filler)),
		)
	}
	return turns
}

func TestCompressPassthrough(t *testing.T) {
	c := newCompressor()
	turns := exchanges(3, "")

	cc := c.Compress(turns, "next question")

	assert.False(t, cc.Compressed)
	assert.Len(t, cc.Turns, 6)
	assert.Empty(t, cc.References)
}

func TestCompressBoundsLongHistory(t *testing.T) {
	c := newCompressor()
	filler := strings.Repeat("palabras de relleno clinico ", 10)
	turns := exchanges(250, filler)

	cc := c.Compress(turns, "how should I proceed with the case")

	assert.True(t, cc.Compressed)
	assert.LessOrEqual(t, cc.TokenEstimate, config.DefaultConfig().Compressor.TargetTokens)
	assert.Less(t, len(cc.Turns), len(turns))

	// The kept suffix preserves chronological order and ends with the
	// newest turn.
	require.NotEmpty(t, cc.Turns)
	last := cc.Turns[len(cc.Turns)-1]
	assert.Contains(t, last.Text(), "handler reply 249")
}

func TestCompressFlatCostAcrossSessionLength(t *testing.T) {
	c := newCompressor()
	filler := strings.Repeat("material extenso de sesion ", 8)

	short := c.Compress(exchanges(50, filler), "question")
	long := c.Compress(exchanges(500, filler), "question")

	assert.True(t, short.Compressed)
	assert.True(t, long.Compressed)
	assert.LessOrEqual(t, len(long.Turns), len(short.Turns))
	assert.LessOrEqual(t, long.TokenEstimate, config.DefaultConfig().Compressor.TargetTokens)
}

func TestCompressKeepsRecentExchangesVerbatim(t *testing.T) {
	cfg := config.DefaultConfig().Compressor
	c := New(cfg, logging.NoOpLogger{})
	filler := strings.Repeat("contenido ", 30)
	turns := exchanges(100, filler)

	cc := c.Compress(turns, "short question")

	users := 0
	for _, turn := range cc.Turns {
		if turn.Role == core.RoleUser {
			users++
		}
	}
	assert.LessOrEqual(t, users, cfg.RecentExchanges)
	assert.GreaterOrEqual(t, users, 1)
}

func TestCompressExtractsCallbackReferences(t *testing.T) {
	c := newCompressor()
	filler := strings.Repeat("relleno extenso de conversacion ", 20)
	turns := exchanges(100, filler)
	turns[10] = core.NewUserTurn("I want to revisit that approach with the exposure hierarchy " + filler)

	cc := c.Compress(turns, "continue")
	require.True(t, cc.Compressed)

	var callback bool
	for _, ref := range cc.References {
		if ref.Kind == core.ReferenceCallback {
			callback = true
			assert.Contains(t, ref.Snippet, "that approach")
		}
	}
	assert.True(t, callback, "expected a callback reference from the dropped prefix")
}

func TestCompressExtractsAttachmentReferences(t *testing.T) {
	c := newCompressor()
	filler := strings.Repeat("relleno extenso de conversacion ", 20)
	turns := exchanges(100, filler)
	turns[4] = core.NewUserTurn("please review this "+filler, "doc-42")

	cc := c.Compress(turns, "continue")
	require.True(t, cc.Compressed)

	var attachment bool
	for _, ref := range cc.References {
		if ref.Kind == core.ReferenceAttachment {
			attachment = true
			assert.Contains(t, ref.Snippet, "doc-42")
		}
	}
	assert.True(t, attachment)
}

func TestCompressReferenceCap(t *testing.T) {
	cfg := config.DefaultConfig().Compressor
	c := New(cfg, logging.NoOpLogger{})
	filler := strings.Repeat("relleno ", 50)

	var turns []core.Turn
	for i := 0; i < 100; i++ {
		turns = append(turns,
			core.NewUserTurn(fmt.Sprintf("as we discussed earlier point %d %s", i, filler)),
			core.NewHandlerTurn(core.HandlerSocratic, filler),
		)
	}

	cc := c.Compress(turns, "continue")
	require.True(t, cc.Compressed)
	assert.LessOrEqual(t, len(cc.References), cfg.MaxReferences)
}

func TestCompressSingleOversizedTurn(t *testing.T) {
	cfg := config.DefaultConfig().Compressor
	c := New(cfg, logging.NoOpLogger{})
	huge := core.NewUserTurn(strings.Repeat("palabra ", cfg.TargetTokens*2))

	cc := c.Compress([]core.Turn{huge}, "question")

	assert.True(t, cc.Compressed)
	assert.LessOrEqual(t, cc.TokenEstimate, cfg.TargetTokens)
	require.Len(t, cc.Turns, 1)
}

func TestCompressIncomingExceedsTarget(t *testing.T) {
	cfg := config.DefaultConfig().Compressor
	c := New(cfg, logging.NoOpLogger{})
	turns := exchanges(10, strings.Repeat("historia ", 20))
	incoming := strings.Repeat("palabra ", cfg.TargetTokens)

	cc := c.Compress(turns, incoming)

	// No history fits next to an incoming turn bigger than the target; the
	// estimate is then the incoming turn alone.
	assert.True(t, cc.Compressed)
	assert.Empty(t, cc.Turns)
	assert.Equal(t, EstimateTokens(incoming), cc.TokenEstimate)
}

func TestTruncateTurnKeepsRuneBoundary(t *testing.T) {
	budget := 29
	turn := core.NewUserTurn(strings.Repeat("€", 200))

	out := truncateTurn(turn, budget)

	assert.True(t, utf8.ValidString(out.Text()))
	assert.LessOrEqual(t, EstimateTurn(out), budget)
}

func TestClipKeepsRuneBoundary(t *testing.T) {
	clipped := clip(strings.Repeat("é", 120))

	assert.True(t, utf8.ValidString(clipped))
	assert.LessOrEqual(t, len(clipped), snippetLimit)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}
