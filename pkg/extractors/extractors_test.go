package extractors

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const page = `<html><body>
<ul id="links">
  <li><a href="/one" class="x">One</a></li>
  <li><a href="/two">Two</a></li>
</ul>
</body></html>`

const feed = `<?xml version="1.0"?>
<users>
  <user id="1" role="admin">ada</user>
  <user id="2">grace</user>
</users>`

func TestHTML(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		options  Options
		want     []string
		wantErr  error
	}{
		{"first text", "a", Options{}, []string{"One"}, nil},
		{"all text", "#links a", Options{All: true}, []string{"One", "Two"}, nil},
		{"all attributes", "a", Options{Attribute: "href", All: true}, []string{"/one", "/two"}, nil},
		{"attribute on some", "a", Options{Attribute: "class", All: true}, []string{"x"}, nil},
		{"missing attribute", "li", Options{Attribute: "href"}, nil, ErrNoMatch},
		{"no elements", "table", Options{}, nil, ErrNoMatch},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := HTML(strings.NewReader(page), test.selector, test.options)
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Fatalf("err = %v, want %v", err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Fatalf("got %q, want %q", got, test.want)
			}
		})
	}
}

func TestHTMLRequiresSelector(t *testing.T) {
	if _, err := HTML(strings.NewReader(page), " ", Options{}); err == nil {
		t.Fatal("empty selector accepted")
	}
}

func TestXML(t *testing.T) {
	tests := []struct {
		name    string
		xpath   string
		options Options
		want    []string
		wantErr bool
	}{
		{"first text", "//user", Options{}, []string{"ada"}, false},
		{"all text", "//user", Options{All: true}, []string{"ada", "grace"}, false},
		{"attribute step", "//user/@id", Options{All: true}, []string{"1", "2"}, false},
		{"attribute option", "//user", Options{Attribute: "role", All: true}, []string{"admin"}, false},
		{"predicate", "//user[@id='2']", Options{}, []string{"grace"}, false},
		{"no nodes", "//group", Options{}, nil, true},
		{"bad expression", "//user[", Options{}, nil, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := XML(strings.NewReader(feed), test.xpath, test.options)
			if (err != nil) != test.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, test.wantErr)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Fatalf("got %q, want %q", got, test.want)
			}
		})
	}
}

func TestRegex(t *testing.T) {
	text := "id=7 id=9 id=11"
	tests := []struct {
		name    string
		pattern string
		group   int
		all     bool
		want    []string
		wantErr bool
	}{
		{"first match", `id=\d+`, 0, false, []string{"id=7"}, false},
		{"all groups", `id=(\d+)`, 1, true, []string{"7", "9", "11"}, false},
		{"group out of range", `id=(\d+)`, 2, false, nil, true},
		{"no match", `name=\w+`, 0, false, nil, true},
		{"invalid pattern", `(`, 0, false, nil, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Regex(text, test.pattern, test.group, test.all)
			if (err != nil) != test.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, test.wantErr)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Fatalf("got %q, want %q", got, test.want)
			}
		})
	}
}

func TestJSON(t *testing.T) {
	document := []byte(`{
		// inventory
		"store": {"name": "north", "items": [
			{"sku": "a1", "tags": ["red", "big"]},
			{"sku": "b2", "tags": ["blue"]},
		]},
	}`)
	tests := []struct {
		name    string
		path    string
		want    []any
		wantErr bool
	}{
		{"root", "$", []any{map[string]any{"store": map[string]any{"name": "north", "items": []any{
			map[string]any{"sku": "a1", "tags": []any{"red", "big"}},
			map[string]any{"sku": "b2", "tags": []any{"blue"}},
		}}}}, false},
		{"property", "$.store.name", []any{"north"}, false},
		{"without prefix", "store.name", []any{"north"}, false},
		{"index", "$.store.items[1].sku", []any{"b2"}, false},
		{"negative index", "$.store.items[-1].sku", []any{"b2"}, false},
		{"wildcard", "$.store.items[*].sku", []any{"a1", "b2"}, false},
		{"chained", "$.store.items[0].tags[1]", []any{"big"}, false},
		{"missing property", "$.store.owner", nil, true},
		{"out of bounds", "$.store.items[5]", nil, true},
		{"index on object", "$.store[0]", nil, true},
		{"bad index", "$.store.items[x]", nil, true},
		{"unclosed", "$.store.items[0", nil, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := JSON(document, test.path)
			if (err != nil) != test.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, test.wantErr)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Fatalf("got %v, want %v", got, test.want)
			}
		})
	}
}

func TestJSONMissingPropertyIsNoMatch(t *testing.T) {
	_, err := JSON([]byte(`{"a": 1}`), "b")
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
}
