package stage

// Health reports whether one pipeline stage can run: its external
// tools are present and its directories are usable.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy marks a stage ready to process sessions.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy marks a stage unusable, with the reason in Detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
