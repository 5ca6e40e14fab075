package webhook

import (
	"fmt"
	"net/url"
	"strings"
)

// UTM holds campaign attribution of a sale. Empty fields mean not present.
type UTM struct {
	Source   string
	Medium   string
	Campaign string
	Content  string
	Term     string
}

// Merge fills fields that are empty in u from other.
func (u UTM) Merge(other UTM) UTM {
	return UTM{
		Source:   firstNonEmpty(u.Source, other.Source),
		Medium:   firstNonEmpty(u.Medium, other.Medium),
		Campaign: firstNonEmpty(u.Campaign, other.Campaign),
		Content:  firstNonEmpty(u.Content, other.Content),
		Term:     firstNonEmpty(u.Term, other.Term),
	}
}

func (u UTM) IsZero() bool {
	return u == UTM{}
}

// utmFromMap reads utm_* keys from a metadata bag. Keys without the utm_
// prefix are accepted as well since some platforms strip it.
func utmFromMap(m map[string]any) UTM {
	if len(m) == 0 {
		return UTM{}
	}
	get := func(name string) string {
		for _, k := range []string{"utm_" + name, name} {
			for key, v := range m {
				if strings.EqualFold(key, k) {
					if s := stringify(v); s != "" {
						return s
					}
				}
			}
		}
		return ""
	}
	return UTM{
		Source:   get("source"),
		Medium:   get("medium"),
		Campaign: get("campaign"),
		Content:  get("content"),
		Term:     get("term"),
	}
}

func utmFromStringMap(m map[string]string) UTM {
	bag := make(map[string]any, len(m))
	for k, v := range m {
		bag[k] = v
	}
	return utmFromMap(bag)
}

// utmFromURL reads utm_* parameters from the query string of a landing page
// URL, falling back to a query embedded in the fragment (#/page?utm_source=..).
func utmFromURL(raw string) UTM {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return UTM{}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return UTM{}
	}
	out := utmFromValues(u.Query())
	if frag := u.Fragment; frag != "" {
		if i := strings.Index(frag, "?"); i >= 0 {
			frag = frag[i+1:]
		}
		if values, err := url.ParseQuery(frag); err == nil {
			out = out.Merge(utmFromValues(values))
		}
	}
	return out
}

func utmFromValues(v url.Values) UTM {
	return UTM{
		Source:   strings.TrimSpace(v.Get("utm_source")),
		Medium:   strings.TrimSpace(v.Get("utm_medium")),
		Campaign: strings.TrimSpace(v.Get("utm_campaign")),
		Content:  strings.TrimSpace(v.Get("utm_content")),
		Term:     strings.TrimSpace(v.Get("utm_term")),
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return ""
	}
}
