package models

import "strings"

// Contact is a person to text when an event is created.
type Contact struct {
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
}

// NormalizeContacts accepts the legacy shapes found under
// metadata.trustedContacts: a list whose entries are either a bare phone
// string or an object with a "phone" field. Entries without a usable phone
// are dropped.
func NormalizeContacts(raw interface{}) []Contact {
	var items []interface{}
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case []map[string]interface{}:
		for _, m := range v {
			items = append(items, m)
		}
	case []Contact:
		for _, c := range v {
			items = append(items, map[string]interface{}{"phone": c.Phone, "name": c.Name})
		}
	default:
		return nil
	}

	contacts := make([]Contact, 0, len(items))
	for _, item := range items {
		var c Contact
		switch entry := item.(type) {
		case string:
			c.Phone = entry
		case map[string]interface{}:
			phone, _ := entry["phone"].(string)
			name, _ := entry["name"].(string)
			c.Phone = phone
			c.Name = name
		default:
			continue
		}
		c.Phone = strings.TrimSpace(c.Phone)
		if c.Phone == "" {
			continue
		}
		contacts = append(contacts, c)
	}
	return contacts
}
