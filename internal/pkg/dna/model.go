package dna

type Kind uint8

const (
	KindNone Kind = iota
	KindZombie
	KindHuman
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindZombie:
		return "zombie"
	case KindHuman:
		return "human"
	case KindUnknown:
		return "unknown"
	}

	return "unknown"
}
