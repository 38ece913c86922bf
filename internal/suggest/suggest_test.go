package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choreboard/internal/metrics"
)

type fakeMessages struct {
	msg  *anthropic.Message
	err  error
	seen []anthropic.MessageNewParams
}

func (f *fakeMessages) New(_ context.Context, body anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.seen = append(f.seen, body)
	return f.msg, f.err
}

func textMessage(text string) *anthropic.Message {
	return &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "text", Text: text}}}
}

func TestSuggest(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeMessages
		want   string
		source string
	}{
		{
			name:   "model answer is trimmed and unquoted",
			client: &fakeMessages{msg: textMessage("  \"Arroser les plantes\"\n")},
			want:   "Arroser les plantes",
			source: SourceModel,
		},
		{
			name:   "api error",
			client: &fakeMessages{err: errors.New("overloaded")},
			want:   ErrorSuggestion,
			source: SourceError,
		},
		{
			name:   "blank answer",
			client: &fakeMessages{msg: textMessage(` "" `)},
			want:   EmptySuggestion,
			source: SourceEmpty,
		},
		{
			name:   "no text block",
			client: &fakeMessages{msg: &anthropic.Message{}},
			want:   EmptySuggestion,
			source: SourceEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			s := NewWithClient(tt.client, "claude-test", m, nil)

			assert.Equal(t, tt.want, s.Suggest(context.Background()))
			expected := fmt.Sprintf(`
# HELP choreboard_suggestions_total Chore suggestions served by source.
# TYPE choreboard_suggestions_total counter
choreboard_suggestions_total{source=%q} 1
`, tt.source)
			require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "choreboard_suggestions_total"))

			require.Len(t, tt.client.seen, 1)
			params := tt.client.seen[0]
			assert.Equal(t, anthropic.Model("claude-test"), params.Model)
			assert.Equal(t, int64(maxTokens), params.MaxTokens)
			assert.Equal(t, temperature, params.Temperature.Value)
		})
	}
}

func TestSuggestUnconfigured(t *testing.T) {
	s := New("", "claude-test", nil, nil)
	assert.False(t, s.Configured())
	assert.Equal(t, UnconfiguredSuggestion, s.Suggest(context.Background()))
}
