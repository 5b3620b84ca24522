package genome

import "fmt"

type MarkerKind int

const (
	MarkerSNP MarkerKind = iota
	MarkerMicrosatellite
)

func (k MarkerKind) String() string {
	switch k {
	case MarkerSNP:
		return "snp"
	case MarkerMicrosatellite:
		return "microsatellite"
	default:
		return fmt.Sprintf("marker(%d)", int(k))
	}
}

// Marker is a single genetic site. Every marker occupies one allele code per
// homologous copy; Alleles enumerates the codes it may take.
type Marker struct {
	Kind    MarkerKind
	Alleles []uint8
}

// SNP returns a bi-allelic marker with codes {0, 1}.
func SNP() Marker {
	return Marker{Kind: MarkerSNP, Alleles: []uint8{0, 1}}
}

// MicroSatellite returns a multi-allelic marker. With no codes given it
// defaults to the SNP domain.
func MicroSatellite(alleles ...uint8) Marker {
	if len(alleles) == 0 {
		alleles = []uint8{0, 1}
	}
	domain := make([]uint8, len(alleles))
	copy(domain, alleles)
	return Marker{Kind: MarkerMicrosatellite, Alleles: domain}
}

func (Marker) Size() int {
	return 1
}
