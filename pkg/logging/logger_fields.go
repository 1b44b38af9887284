package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

func Component(name string) Field {
	return String("component", name)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}

func Path(p string) Field {
	return String("path", p)
}

// Routing helpers

func Episode(id string) Field {
	return String("episode_id", id)
}

func Step(n int) Field {
	return Int("step", n)
}

func Variant(name string) Field {
	return String("variant", name)
}

// Action records the action kind ("swap", "bridge", "commit") and its index
func Action(kind string, index int) Field {
	return Any("action", map[string]any{"kind": kind, "index": index})
}

func Reward(r float64) Field {
	return Float64("reward", r)
}

func Nodes(nodes ...int) Field {
	return Any("nodes", nodes)
}

func Circuit(name string) Field {
	return String("circuit", name)
}
