package types

import "fmt"

// AtomicKind names a primitive C type. The zero value is invalid.
type AtomicKind uint8

const (
	AtomicInvalid AtomicKind = iota
	Void
	WChar
	Char
	SChar
	UChar
	Short
	UShort
	Int
	UInt
	Long
	ULong
	LongLong
	ULongLong
	Bool
	Float
	Double
	LongDouble

	atomicLast = LongDouble
)

var atomicNames = [...]string{
	AtomicInvalid: "INVALIDATOMIC",
	Void:          "void",
	WChar:         "wchar_t",
	Char:          "char",
	SChar:         "signed char",
	UChar:         "unsigned char",
	Short:         "short",
	UShort:        "unsigned short",
	Int:           "int",
	UInt:          "unsigned int",
	Long:          "long",
	ULong:         "unsigned long",
	LongLong:      "long long",
	ULongLong:     "unsigned long long",
	Bool:          "_Bool",
	Float:         "float",
	Double:        "double",
	LongDouble:    "long double",
}

// String returns the C spelling of the kind in C dialects.
func (k AtomicKind) String() string {
	if k > atomicLast {
		return "INVALIDATOMIC"
	}
	return atomicNames[k]
}

// AtomicFlags classifies an atomic kind.
type AtomicFlags uint8

const (
	FlagInteger AtomicFlags = 1 << iota
	FlagFloat
	FlagArithmetic
	FlagSigned
	FlagComplex

	FlagNone AtomicFlags = 0
)

type atomicProps struct {
	size      int
	alignment int
	flags     AtomicFlags
}

// TargetConfig describes the machine the table is built for.
type TargetConfig struct {
	WordSize     int        // 16, 32 or 64
	CharIsSigned bool       // plain char is signed
	WcharKind    AtomicKind // underlying kind of wchar_t
}

// DefaultTargetConfig is the 32-bit x86 configuration.
func DefaultTargetConfig() TargetConfig {
	return TargetConfig{WordSize: 32, CharIsSigned: true, WcharKind: Int}
}

// Target is the immutable size, alignment and flag table for every atomic
// kind. It is built once per compilation and never changes afterwards.
type Target struct {
	cfg   TargetConfig
	props [atomicLast + 1]atomicProps
}

// NewTarget builds the property table for cfg.
func NewTarget(cfg TargetConfig) (*Target, error) {
	switch cfg.WordSize {
	case 16, 32, 64:
	default:
		return nil, fmt.Errorf("unsupported word size %d (want 16, 32 or 64)", cfg.WordSize)
	}
	if cfg.WcharKind == AtomicInvalid || cfg.WcharKind == WChar || cfg.WcharKind > atomicLast {
		return nil, fmt.Errorf("invalid wchar_t kind %s", cfg.WcharKind)
	}

	t := &Target{cfg: cfg}
	p := &t.props
	intFlags := FlagInteger | FlagArithmetic
	floatFlags := FlagFloat | FlagArithmetic | FlagSigned

	p[Void] = atomicProps{}
	p[Char] = atomicProps{1, 1, intFlags}
	p[SChar] = atomicProps{1, 1, intFlags | FlagSigned}
	p[UChar] = atomicProps{1, 1, intFlags}
	p[Short] = atomicProps{2, 2, intFlags | FlagSigned}
	p[UShort] = atomicProps{2, 2, intFlags}
	p[Float] = atomicProps{4, 4, floatFlags}
	p[Double] = atomicProps{8, 4, floatFlags}
	p[LongDouble] = atomicProps{12, 4, floatFlags}

	if cfg.CharIsSigned {
		p[Char].flags |= FlagSigned
	}

	intSize, longSize, llongSize := 4, 4, 8
	if cfg.WordSize < 32 {
		intSize, llongSize = 2, 4
	}
	if cfg.WordSize >= 64 {
		longSize = 8
	}
	p[Int] = atomicProps{intSize, intSize, intFlags | FlagSigned}
	p[UInt] = atomicProps{intSize, intSize, intFlags}
	p[Long] = atomicProps{longSize, longSize, intFlags | FlagSigned}
	p[ULong] = atomicProps{longSize, longSize, intFlags}
	// long long is 4-aligned on x86 regardless of its size.
	p[LongLong] = atomicProps{llongSize, 4, intFlags | FlagSigned}
	p[ULongLong] = atomicProps{llongSize, 4, intFlags}

	p[Bool] = p[UChar]
	p[WChar] = p[cfg.WcharKind]
	return t, nil
}

// MustTarget is NewTarget for configurations known to be valid.
func MustTarget(cfg TargetConfig) *Target {
	t, err := NewTarget(cfg)
	if err != nil {
		panic(err)
	}
	return t
}

// Config returns the configuration the table was built from.
func (t *Target) Config() TargetConfig { return t.cfg }

func (t *Target) lookup(k AtomicKind) atomicProps {
	if k > atomicLast {
		panic(fmt.Sprintf("atomic kind %d out of range", k))
	}
	return t.props[k]
}

// SizeOf returns the size of k in bytes.
func (t *Target) SizeOf(k AtomicKind) int { return t.lookup(k).size }

// AlignmentOf returns the natural alignment of k in bytes.
func (t *Target) AlignmentOf(k AtomicKind) int { return t.lookup(k).alignment }

// FlagsOf returns the classification flags of k.
func (t *Target) FlagsOf(k AtomicKind) AtomicFlags { return t.lookup(k).flags }

// PointerSize is the size of a data pointer in bytes.
func (t *Target) PointerSize() int { return t.cfg.WordSize / 8 }

// IntPtrKind returns the signed kind wide enough to hold a pointer.
func (t *Target) IntPtrKind() AtomicKind {
	switch {
	case t.cfg.WordSize <= 32:
		return Int
	case t.cfg.WordSize <= 64:
		return Long
	default:
		return LongLong
	}
}

// UintPtrKind is the unsigned counterpart of IntPtrKind.
func (t *Target) UintPtrKind() AtomicKind {
	switch {
	case t.cfg.WordSize <= 32:
		return UInt
	case t.cfg.WordSize <= 64:
		return ULong
	default:
		return ULongLong
	}
}

var (
	signedBySize   = [...]AtomicKind{SChar, Short, Int, Long, LongLong}
	unsignedBySize = [...]AtomicKind{UChar, UShort, UInt, ULong, ULongLong}
)

// SignedKindForSize returns the first signed integer kind of the given
// size, or AtomicInvalid when there is none.
func (t *Target) SignedKindForSize(size int) AtomicKind {
	return t.kindForSize(signedBySize[:], size)
}

// UnsignedKindForSize returns the first unsigned integer kind of the given
// size, or AtomicInvalid when there is none.
func (t *Target) UnsignedKindForSize(size int) AtomicKind {
	return t.kindForSize(unsignedBySize[:], size)
}

func (t *Target) kindForSize(candidates []AtomicKind, size int) AtomicKind {
	for _, k := range candidates {
		if t.props[k].size == size {
			return k
		}
	}
	return AtomicInvalid
}
