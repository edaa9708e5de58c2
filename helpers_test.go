package prettymd

import "testing"

func printEvents(t *testing.T, events []Event, opts ...Option) string {
	t.Helper()
	out, err := Print(events, opts...)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	return out
}

// para wraps inline events in a paragraph.
func para(inline ...Event) []Event {
	return wrap(Paragraph(), inline...)
}

func wrap(tag Tag, inner ...Event) []Event {
	out := make([]Event, 0, len(inner)+2)
	out = append(out, Start(tag))
	out = append(out, inner...)
	return append(out, End(tag))
}

func join(groups ...[]Event) []Event {
	var out []Event
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func item(inner ...Event) []Event { return wrap(ListItem(), inner...) }

func list(tag Tag, items ...[]Event) []Event { return wrap(tag, join(items...)...) }
