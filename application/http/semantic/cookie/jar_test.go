package cookie

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(j *Jar) []string {
	var out []string
	for c := range j.All() {
		out = append(out, c.Name)
	}
	return out
}

func TestJar(t *testing.T) {
	var j Jar
	j.Set(Cookie{Name: "b", Value: "1"})
	j.Set(Cookie{Name: "a", Value: "2"})
	j.Set(Cookie{Name: "b", Value: "3"})

	assert.Equal(t, 2, j.Len())
	assert.Equal(t, []string{"b", "a"}, names(&j))

	c, ok := j.Get("b")
	require.True(t, ok)
	assert.Equal(t, "3", c.Value)

	j.Del("b")
	j.Del("missing")
	assert.Equal(t, []string{"a"}, names(&j))

	_, ok = j.Get("b")
	assert.False(t, ok)
}

func TestJarSetReturnsStored(t *testing.T) {
	j := NewJar()
	stored := j.Set(Cookie{Name: "a"})
	stored.Path = "/x"

	c, _ := j.Get("a")
	assert.Equal(t, "/x", c.Path)
	assert.True(t, slices.Equal([]string{"a"}, names(j)))
}
