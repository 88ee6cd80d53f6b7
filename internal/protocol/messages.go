package protocol

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// RootNodeID is the sentinel identifier the worker uses for the
// synchronization root. It resolves to the coordinator's mount point, never
// to an identity-map entry.
const RootNodeID = "root"

// Mutation variant tags. Wire-compatible with an unmodified worker.
const (
	MutationChildList     = "childList"
	MutationAttributes    = "attributes"
	MutationCharacterData = "characterData"
	MutationProperties    = "properties"
)

// Worker-to-coordinator message types.
const (
	TypeMutate     = "mutate"
	TypeInitResult = "init-result"
)

// Coordinator-to-worker message types.
const (
	TypeInit  = "init"
	TypeEvent = "event"
)

var (
	ErrUnknownMessageType  = errors.New("unknown message type")
	ErrUnknownMutationType = errors.New("unknown mutation type")
	ErrMissingTarget       = errors.New("mutation missing target")
)

// Skeleton is a plain serializable description of a node tree. It is
// produced by the worker, consumed exactly once by the materializer, and not
// retained afterwards.
type Skeleton struct {
	NodeID     string            `json:"nodeId"`
	Kind       string            `json:"kind"` // "element" or "text"
	Tag        string            `json:"tag,omitempty"`
	Class      string            `json:"class,omitempty"`
	Style      map[string]string `json:"style,omitempty"`
	Attributes []Attribute       `json:"attributes,omitempty"`
	Children   []Skeleton        `json:"children,omitempty"`
	Text       string            `json:"text,omitempty"`
}

// Attribute is a single name/value pair on a skeleton element.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Skeleton kinds.
const (
	KindElement = "element"
	KindText    = "text"
)

// Mutation is one tree-mutation instruction. The variant tag in Type selects
// which payload fields are meaningful. Value doubles as the characterData
// payload; a nil Value on an attributes mutation is the removal sentinel.
type Mutation struct {
	Type   string `json:"type"`
	Target string `json:"target"`

	// childList payload
	AddedNodes      []Skeleton `json:"addedNodes,omitempty"`
	RemovedNodes    []string   `json:"removedNodes,omitempty"`
	PreviousSibling string     `json:"previousSibling,omitempty"`
	NextSibling     string     `json:"nextSibling,omitempty"`

	// attributes / properties payload
	AttributeName string  `json:"attributeName,omitempty"`
	PropertyName  string  `json:"propertyName,omitempty"`
	OldValue      *string `json:"oldValue,omitempty"`

	// attributes / characterData / properties payload
	Value *string `json:"value,omitempty"`
}

// Validate checks the closed-variant contract on a decoded mutation.
func (m *Mutation) Validate() error {
	switch m.Type {
	case MutationChildList, MutationAttributes, MutationCharacterData, MutationProperties:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMutationType, m.Type)
	}
	if m.Target == "" {
		return ErrMissingTarget
	}
	return nil
}

// Event is the minimal serialized representation of a local interaction
// forwarded to the worker. Properties carries only scalar own fields of the
// originating event.
type Event struct {
	Type       string         `json:"type"`
	Target     string         `json:"target"`
	Properties map[string]any `json:"properties,omitempty"`
	Value      string         `json:"value,omitempty"`
}

// FromWorker is the envelope for worker-to-coordinator messages.
type FromWorker struct {
	Type      string     `json:"type"`
	Mutations []Mutation `json:"mutations,omitempty"`
	Skeleton  *Skeleton  `json:"skeleton,omitempty"`
}

// Validate rejects unknown envelope tags and malformed payloads.
func (f *FromWorker) Validate() error {
	switch f.Type {
	case TypeMutate:
		for i := range f.Mutations {
			if err := f.Mutations[i].Validate(); err != nil {
				return fmt.Errorf("mutation %d: %w", i, err)
			}
		}
		return nil
	case TypeInitResult:
		if f.Skeleton == nil {
			return errors.New("init-result missing skeleton")
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, f.Type)
	}
}

// ToWorker is the envelope for coordinator-to-worker messages.
type ToWorker struct {
	Type     string `json:"type"`
	Event    *Event `json:"event,omitempty"`
	Location string `json:"location,omitempty"`
}

// Validate rejects unknown envelope tags.
func (t *ToWorker) Validate() error {
	switch t.Type {
	case TypeInit, TypeEvent:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, t.Type)
	}
}

// DecodeFromWorker deserializes and validates one worker message.
func DecodeFromWorker(data []byte) (*FromWorker, error) {
	var msg FromWorker
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode worker message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeFromWorker serializes one worker message.
func EncodeFromWorker(msg *FromWorker) ([]byte, error) {
	return sonic.Marshal(msg)
}

// DecodeToWorker deserializes and validates one coordinator message.
func DecodeToWorker(data []byte) (*ToWorker, error) {
	var msg ToWorker
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode coordinator message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeToWorker serializes one coordinator message.
func EncodeToWorker(msg *ToWorker) ([]byte, error) {
	return sonic.Marshal(msg)
}

// String returns a pointer to v, for the optional value fields.
func String(v string) *string {
	return &v
}
