package hub

// Kind identifies the hub family a physical device belongs to.
type Kind int

const (
	KindPoweredUp Kind = iota
	KindBoost
	KindTechnic
	KindDuploTrain
)

// systemTypes maps each kind to the system type byte the device advertises.
var systemTypes = map[Kind]byte{
	KindPoweredUp:  0x41,
	KindBoost:      0x40,
	KindTechnic:    0x80,
	KindDuploTrain: 0x20,
}

func (k Kind) String() string {
	switch k {
	case KindPoweredUp:
		return "powered-up"
	case KindBoost:
		return "boost"
	case KindTechnic:
		return "technic"
	case KindDuploTrain:
		return "duplo-train"
	default:
		return "unknown"
	}
}

// SystemType returns the advertised system type byte for the kind.
func (k Kind) SystemType() byte {
	return systemTypes[k]
}
