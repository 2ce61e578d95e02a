package otp

import "strings"

// CodeInput models a row of single-digit slots with a focused slot.
type CodeInput struct {
	slots []rune
	focus int
}

func NewCodeInput(length int) *CodeInput {
	return &CodeInput{slots: make([]rune, length)}
}

func (c *CodeInput) Len() int   { return len(c.slots) }
func (c *CodeInput) Focus() int { return c.focus }

// SetFocus moves focus to slot i, clamped to the row.
func (c *CodeInput) SetFocus(i int) {
	c.focus = min(max(i, 0), max(len(c.slots)-1, 0))
}

// Type writes r into the focused slot and advances. Non-digits are ignored.
func (c *CodeInput) Type(r rune) bool {
	if !isDigit(r) || len(c.slots) == 0 {
		return false
	}
	c.slots[c.focus] = r
	c.SetFocus(c.focus + 1)
	return true
}

// Paste fills slots left to right from the focused slot with the digits of
// s, truncated to the remaining slots. Other slots are left untouched.
func (c *CodeInput) Paste(s string) int {
	n := 0
	for _, r := range s {
		if !isDigit(r) {
			continue
		}
		i := c.focus + n
		if i >= len(c.slots) {
			break
		}
		c.slots[i] = r
		n++
	}
	if n > 0 {
		c.SetFocus(c.focus + n)
	}
	return n
}

// Backspace clears the focused slot, or moves focus back when it is empty.
func (c *CodeInput) Backspace() {
	if len(c.slots) == 0 {
		return
	}
	if c.slots[c.focus] != 0 {
		c.slots[c.focus] = 0
		return
	}
	c.SetFocus(c.focus - 1)
}

func (c *CodeInput) Reset() {
	clear(c.slots)
	c.focus = 0
}

// Complete reports whether every slot holds a digit.
func (c *CodeInput) Complete() bool {
	for _, r := range c.slots {
		if r == 0 {
			return false
		}
	}
	return len(c.slots) > 0
}

// Code returns the entered digits, empty slots skipped.
func (c *CodeInput) Code() string {
	var b strings.Builder
	for _, r := range c.slots {
		if r != 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Digits returns a copy of the slots; 0 marks an empty slot.
func (c *CodeInput) Digits() []rune {
	out := make([]rune, len(c.slots))
	copy(out, c.slots)
	return out
}

// String renders the row with '_' for empty slots.
func (c *CodeInput) String() string {
	var b strings.Builder
	for _, r := range c.slots {
		if r == 0 {
			r = '_'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
