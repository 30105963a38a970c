package cookie

import "iter"

// Jar holds outbound cookies in the order they were first set.
// The zero value is ready to use.
type Jar struct {
	names   []string
	cookies map[string]*Cookie
}

func NewJar() *Jar { return &Jar{} }

// Set stores c, replacing a cookie of the same name in place.
func (j *Jar) Set(c Cookie) *Cookie {
	if j.cookies == nil {
		j.cookies = make(map[string]*Cookie)
	}

	if _, ok := j.cookies[c.Name]; !ok {
		j.names = append(j.names, c.Name)
	}

	stored := &c
	j.cookies[c.Name] = stored
	return stored
}

func (j *Jar) Get(name string) (*Cookie, bool) {
	c, ok := j.cookies[name]
	return c, ok
}

func (j *Jar) Del(name string) {
	if _, ok := j.cookies[name]; !ok {
		return
	}
	delete(j.cookies, name)

	for idx, n := range j.names {
		if n == name {
			j.names = append(j.names[:idx], j.names[idx+1:]...)
			break
		}
	}
}

func (j *Jar) Len() int { return len(j.names) }

func (j *Jar) All() iter.Seq[*Cookie] {
	return func(yield func(*Cookie) bool) {
		for _, name := range j.names {
			if !yield(j.cookies[name]) {
				return
			}
		}
	}
}
