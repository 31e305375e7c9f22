package dialog

// Fake is a scripted Prompter for tests. Answers are consumed in order; a
// question past the end of its script returns the zero answer.
type Fake struct {
	Passwords []string
	Confirms  []bool

	// Asked records every prompt title in order.
	Asked []string

	passwordIdx int
	confirmIdx  int
}

// Password returns the next scripted password.
func (f *Fake) Password(title string) (string, error) {
	f.Asked = append(f.Asked, title)
	if f.passwordIdx >= len(f.Passwords) {
		return "", nil
	}
	p := f.Passwords[f.passwordIdx]
	f.passwordIdx++
	return p, nil
}

// Confirm returns the next scripted answer.
func (f *Fake) Confirm(title string) (bool, error) {
	f.Asked = append(f.Asked, title)
	if f.confirmIdx >= len(f.Confirms) {
		return false, nil
	}
	c := f.Confirms[f.confirmIdx]
	f.confirmIdx++
	return c, nil
}
