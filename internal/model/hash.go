package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainElement prefixes element content hashes.
const DomainElement = "treesync/element/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ElementHash computes the content hash of an element payload.
//
// Only the payload takes part: info, relations, namespace, data and
// visualization data. Identity, parent link and sub-element ids do not, so
// moving children around never marks a parent as changed.
func ElementHash(e Element) (string, error) {
	canonical, err := MarshalCanonical(payloadObject(e))
	if err != nil {
		return "", fmt.Errorf("ElementHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainElement, canonical), nil
}

// MustElementHash is like ElementHash but panics on error.
// Payload objects only hold strings and byte slices, so this cannot fail in
// practice; tests use it for brevity.
func MustElementHash(e Element) string {
	h, err := ElementHash(e)
	if err != nil {
		panic(err)
	}
	return h
}

// WithHash returns a copy of e carrying its computed content hash.
func (e Element) WithHash() Element {
	e.Hash = MustElementHash(e)
	return e
}

func payloadObject(e Element) map[string]any {
	obj := map[string]any{
		"info":          infoObject(e.Info),
		"namespace":     e.Namespace,
		"data":          bytesOrEmpty(e.Data),
		"visualization": bytesOrEmpty(e.VisualizationData),
	}
	rels := make([]any, len(e.Relations))
	for i, r := range e.Relations {
		rels[i] = map[string]any{
			"type":       r.Type,
			"target_id":  string(r.TargetID),
			"properties": stringMap(r.Properties),
		}
	}
	obj["relations"] = rels
	return obj
}

func infoObject(info Info) map[string]any {
	return map[string]any{
		"name":        info.Name,
		"description": info.Description,
		"properties":  stringMap(info.Properties),
	}
}

func stringMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func bytesOrEmpty(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
