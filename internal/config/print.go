package config

import (
	"io"
	"net/url"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const redacted = "REDACTED"

// Redacted returns a copy of c with secrets masked.
func (c Config) Redacted() Config {
	if c.Auth.ClientSecret != "" {
		c.Auth.ClientSecret = redacted
	}
	c.Ledger.ConnectionString = redactURL(c.Ledger.ConnectionString)
	c.Archive.ConnectionString = redactURL(c.Archive.ConnectionString)
	return c
}

func redactURL(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		return s
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	return u.String()
}

// Print writes the redacted configuration as YAML. Durations are written in
// their string form so the output can be loaded again.
func (c Config) Print(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(printable(reflect.ValueOf(c.Redacted()))); err != nil {
		return err
	}
	return enc.Close()
}

var durationType = reflect.TypeOf(time.Duration(0))

func printable(v reflect.Value) any {
	if v.Type() == durationType {
		return time.Duration(v.Int()).String()
	}

	switch v.Kind() {
	case reflect.Struct:
		out := yaml.Node{Kind: yaml.MappingNode}
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
			if name == "" || name == "-" {
				continue
			}
			var value yaml.Node
			if err := value.Encode(printable(v.Field(i))); err != nil {
				continue
			}
			out.Content = append(out.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: name},
				&value,
			)
		}
		return &out
	case reflect.Slice:
		if v.IsNil() {
			return []any{}
		}
		return v.Interface()
	default:
		return v.Interface()
	}
}
