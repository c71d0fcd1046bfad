package pathutil

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple relative", in: "a/b/c", want: "a/b/c"},
		{name: "pops parent dir", in: "a/b/../c", want: "a/c"},
		{name: "trailing slash preserved", in: "a/b/", want: "a/b/"},
		{name: "no trailing slash stays absent", in: "a/b", want: "a/b"},
		{name: "empty stack keeps literal dotdot", in: "../a", want: "../a"},
		{name: "multiple leading dotdot", in: "../../a", want: "../../a"},
		{name: "dot components dropped", in: "./a/./b", want: "a/b"},
		{name: "absolute path pops within root", in: "/a/b/../c", want: "/a/c"},
		{name: "empty path", in: "", want: "."},
		{name: "collapses consecutive slashes", in: "a//b", want: "a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
