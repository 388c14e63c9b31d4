package session

import (
	"testing"

	"pgregory.net/rapid"
)

// Whatever mix of ticks, pauses and resumes arrives, the countdown only ever
// moves down, and reaching zero is permanent.
func TestClock_RemainingNeverIncreases(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.IntRange(0, 50).Draw(t, "start")

		expires := 0
		clock := NewClock(start, nil, func() { expires++ })

		prev := clock.Remaining()
		steps := rapid.IntRange(1, 200).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				clock.Tick()
			case 1:
				clock.Pause()
			case 2:
				clock.Resume()
			}

			cur := clock.Remaining()
			if cur > prev {
				t.Fatalf("remaining went up: %d -> %d", prev, cur)
			}
			if cur < 0 {
				t.Fatalf("remaining went negative: %d", cur)
			}
			prev = cur
		}

		if expires > 1 {
			t.Fatalf("expire fired %d times", expires)
		}
		if clock.Expired() && clock.Remaining() != 0 {
			t.Fatalf("expired with %d remaining", clock.Remaining())
		}
	})
}

// Pausing blocks every decrement: a paused clock never moves no matter how
// many ticks arrive.
func TestClock_PausedClockIsFrozen(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.IntRange(1, 100).Draw(t, "start")
		clock := NewClock(start, nil, nil)
		clock.Pause()

		ticks := rapid.IntRange(1, 50).Draw(t, "ticks")
		for i := 0; i < ticks; i++ {
			clock.Tick()
		}
		if clock.Remaining() != start {
			t.Fatalf("paused clock moved: %d -> %d", start, clock.Remaining())
		}
	})
}

// Any interleaving of file switches and buffer edits keeps the last written
// content of every file intact.
func TestFileStore_EditsSurviveArbitrarySwitching(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fs := NewFileStore(multiFileTask())
		paths := []string{"main.py", "tests/test_main.py", "README.md", "lib/helpers.py"}

		expected := map[string]string{
			"main.py":            "def solve(): pass\n",
			"tests/test_main.py": "import main\n",
			"README.md":          "# Task\n",
			"lib/helpers.py":     "HELPERS = {}\n",
		}

		steps := rapid.IntRange(1, 100).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(t, "edit") {
				content := rapid.StringN(0, 40, -1).Draw(t, "content")
				fs.UpdateActiveBuffer(content)
				expected[fs.ActivePath()] = content
			} else {
				path := rapid.SampledFrom(paths).Draw(t, "path")
				if _, err := fs.SelectFile(path); err != nil {
					t.Fatalf("select %s: %v", path, err)
				}
			}
		}

		for path, want := range expected {
			got, err := fs.Content(path)
			if err != nil {
				t.Fatalf("content %s: %v", path, err)
			}
			if got != want {
				t.Fatalf("%s content = %q, want %q", path, got, want)
			}
		}
	})
}
