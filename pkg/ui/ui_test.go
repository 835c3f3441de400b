package ui

import (
	"testing"
)

func TestSlider_ValueAt(t *testing.T) {
	s := NewSlider(10, 0, 100, "frame", 0, 50, 0)

	tests := []struct {
		x    float64
		want float64
	}{
		{10, 0},
		{60, 25},
		{110, 50},
		{200, 50}, // clamped
		{-5, 0},   // clamped
	}
	for _, tt := range tests {
		if got := s.ValueAt(tt.x); got != tt.want {
			t.Errorf("ValueAt(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestSlider_StepAndRange(t *testing.T) {
	s := NewSlider(0, 0, 100, "frame", 0, 10, 3.4)
	s.Step = 1
	if got := s.ValueAt(36); got != 4 {
		t.Errorf("Expected value snapped to 4, got %v", got)
	}

	s.Value = 9
	s.SetRange(0, 5)
	if s.Value != 5 {
		t.Errorf("Expected value clamped to new max 5, got %v", s.Value)
	}
	s.SetRange(0, 100)
	if s.Value != 5 {
		t.Errorf("Growing the range must keep the value, got %v", s.Value)
	}
}

func TestSlider_Contains(t *testing.T) {
	s := NewSlider(10, 20, 100, "speed", 0, 1, 0.5)
	if !s.Contains(50, 25) {
		t.Error("Expected point inside the track")
	}
	if s.Contains(50, 40) {
		t.Error("Did not expect point below the track")
	}
}

func TestButton_PressFiresOnce(t *testing.T) {
	clicks := 0
	b := NewButton(0, 0, 50, 20, "play", func() { clicks++ })

	// held down for three frames, then released and pressed again
	b.press(true, true)
	b.press(true, true)
	b.press(true, true)
	b.press(true, false)
	b.press(true, true)

	if clicks != 2 {
		t.Errorf("Expected 2 clicks, got %d", clicks)
	}

	b.press(false, true)
	if clicks != 2 {
		t.Errorf("Pressing outside must not click, got %d", clicks)
	}
}

func TestCheckbox_Toggle(t *testing.T) {
	var seen []bool
	c := NewCheckbox(0, 0, "loop", false)
	c.OnToggle = func(v bool) { seen = append(seen, v) }

	c.press(true, true)
	c.press(true, true) // still held
	c.press(false, false)
	c.press(true, true)

	if c.Value {
		t.Error("Expected checkbox back to false after two clicks")
	}
	if len(seen) != 2 || !seen[0] || seen[1] {
		t.Errorf("Unexpected toggle sequence %v", seen)
	}
}

func TestUIPanel_Layout(t *testing.T) {
	p := NewUIPanel("Playback", 10, 10, 200, 120)

	p.AddSection("Controls")
	play := p.AddButton("Play", nil)
	frame := p.AddSlider("Frame", 0, 100, 0)
	p.EndSection()
	p.AddSection("Display")
	loop := p.AddCheckbox("Loop", true)
	p.EndSection()

	if len(p.Widgets) != 3 || len(p.Labels) != 3 {
		t.Fatalf("Expected 3 widgets, got %d", len(p.Widgets))
	}
	if play.Y >= frame.Y || frame.Y >= loop.Y {
		t.Errorf("Widgets should stack downwards: %v %v %v", play.Y, frame.Y, loop.Y)
	}
	if p.sections[0].EndIndex != 2 || p.sections[1].StartIndex != 2 {
		t.Errorf("Unexpected sections %+v", p.sections)
	}

	// content is taller than the panel, so it scrolls but never past the end
	p.scrollBy(-100)
	maxScroll := p.calculateTotalHeight() - p.Height + 40
	if p.ScrollOffset != maxScroll {
		t.Errorf("Expected scroll clamped to %v, got %v", maxScroll, p.ScrollOffset)
	}
	p.scrollBy(100)
	if p.ScrollOffset != 0 {
		t.Errorf("Expected scroll clamped to 0, got %v", p.ScrollOffset)
	}
}
