package pipeline

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panickyStringer struct{}

func (panickyStringer) String() string { panic("boom") }

type named struct{ label string }

func (n *named) String() string { return n.label }

func TestRender(t *testing.T) {
	var nilNamed *named
	var nilMap map[string]int

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "This is ok", "This is ok"},
		{"nil", nil, NilText},
		{"typed nil pointer", nilNamed, NilText},
		{"nil map", nilMap, NilText},
		{"type value", reflect.TypeOf(""), "string"},
		{"error", errors.New("bad thing"), "bad thing"},
		{"stringer", &named{label: "custom"}, "custom"},
		{"int", 42, "42"},
		{"bytes", []byte("raw"), "raw"},
		{"map", map[string]int{"a": 1}, "map[a:1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.in))
		})
	}
}

func TestRender_NeverPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		out := Render(panickyStringer{})
		assert.NotEmpty(t, out)
	})
}

func TestLog_Records(t *testing.T) {
	log := NewLog(nil)
	log.Info("This is ok")
	log.Info(nil)
	log.Info(reflect.TypeOf(""))
	log.Warningf("%d left", 3)
	log.Error(errors.New("failed"))

	records := log.Records()
	require.Len(t, records, 5)
	assert.Equal(t, Record{Level: LevelInfo, Message: "This is ok", Time: records[0].Time}, records[0])
	assert.Equal(t, NilText, records[1].Message)
	assert.Equal(t, "string", records[2].Message)
	assert.Equal(t, LevelWarning, records[3].Level)
	assert.Equal(t, "3 left", records[3].Message)
	assert.Equal(t, LevelError, records[4].Level)
	assert.False(t, records[0].Time.IsZero())
}

func TestLog_Concurrent(t *testing.T) {
	log := NewLog(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			log.Debug(i)
		}(i)
	}
	wg.Wait()
	assert.Len(t, log.Records(), 20)
}
