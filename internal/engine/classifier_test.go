package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyControls(t *testing.T) {
	tests := []struct {
		name     string
		controls []ControlAttrs
		want     SubmitControlState
	}{
		{
			name: "ready marker",
			controls: []ControlAttrs{
				{Class: "btn text-blue-500", Visible: true},
			},
			want: StateReady,
		},
		{
			name: "busy marker pair",
			controls: []ControlAttrs{
				{Class: "btn text-gray-400 cursor-not-allowed", Visible: true},
			},
			want: StateBusy,
		},
		{
			name: "busy via disabled attribute",
			controls: []ControlAttrs{
				{Class: "btn text-gray-400", Disabled: true, Visible: true},
			},
			want: StateBusy,
		},
		{
			name: "gray without lock is unknown",
			controls: []ControlAttrs{
				{Class: "btn text-gray-400", Visible: true},
			},
			want: StateUnknown,
		},
		{
			name: "ready wins tie against busy duplicate",
			controls: []ControlAttrs{
				{Class: "text-gray-400 cursor-not-allowed"},
				{Class: "text-blue-500"},
			},
			want: StateReady,
		},
		{
			name: "hidden ready node still classifies",
			controls: []ControlAttrs{
				{Class: "text-blue-500", Visible: false},
			},
			want: StateReady,
		},
		{
			name:     "no candidates",
			controls: nil,
			want:     StateUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyControls(tt.controls)
			assert.Equal(t, tt.want, got)

			// Pure function: repeated classification of the same attribute
			// set never changes its answer.
			assert.Equal(t, got, ClassifyControls(tt.controls))
		})
	}
}

func TestClickableIndex(t *testing.T) {
	controls := []ControlAttrs{
		{Class: "text-blue-500", Visible: false},
		{Class: "text-gray-400 cursor-not-allowed", Visible: true},
		{Class: "text-blue-500", Visible: true},
	}
	assert.Equal(t, 2, ClickableIndex(controls))

	assert.Equal(t, -1, ClickableIndex([]ControlAttrs{
		{Class: "text-blue-500", Visible: false},
	}))

	// A busy control is never clickable, however visible.
	assert.Equal(t, -1, ClickableIndex([]ControlAttrs{
		{Class: "text-gray-400 cursor-not-allowed", Visible: true},
		{Class: "text-blue-500", Visible: false},
	}))
}
