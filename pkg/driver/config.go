package driver

import (
	"os"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"cfront/pkg/types"
)

// BuiltinPreprocessor as the preprocessor command selects the preprocessor
// of package compiler instead of an external program.
const BuiltinPreprocessor = "builtin"

// Config describes the external toolchain and the default target.
type Config struct {
	Preprocessor string `yaml:"preprocessor"`
	Assembler    string `yaml:"assembler"`
	Linker       string `yaml:"linker"`
	MachineSize  int    `yaml:"machine_size"`
	CharSigned   *bool  `yaml:"char_signed"`
	WcharKind    string `yaml:"wchar_kind"`
	TempDir      string `yaml:"tempdir"`
}

// DefaultConfig returns the configuration for a 32-bit GNU toolchain.
func DefaultConfig() *Config {
	signed := true
	return &Config{
		Preprocessor: "cpp -std=c99 -U__WCHAR_TYPE__ -D__WCHAR_TYPE__=int -D__SIZE_TYPE__=__SIZE_TYPE__ -m32",
		Assembler:    "as --32",
		Linker:       "gcc -m32",
		MachineSize:  32,
		CharSigned:   &signed,
		WcharKind:    "int",
	}
}

// LoadFile merges the YAML file at path into c. Settings missing from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}
	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return errors.Wrapf(err, "parsing config file %s", path)
	}
	c.merge(&loaded)
	return nil
}

func (c *Config) merge(loaded *Config) {
	if loaded.Preprocessor != "" {
		c.Preprocessor = loaded.Preprocessor
	}
	if loaded.Assembler != "" {
		c.Assembler = loaded.Assembler
	}
	if loaded.Linker != "" {
		c.Linker = loaded.Linker
	}
	if loaded.MachineSize != 0 {
		c.MachineSize = loaded.MachineSize
	}
	if loaded.CharSigned != nil {
		c.CharSigned = loaded.CharSigned
	}
	if loaded.WcharKind != "" {
		c.WcharKind = loaded.WcharKind
	}
	if loaded.TempDir != "" {
		c.TempDir = loaded.TempDir
	}
}

var wcharKinds = map[string]types.AtomicKind{
	"char":           types.Char,
	"short":          types.Short,
	"unsigned short": types.UShort,
	"int":            types.Int,
	"unsigned int":   types.UInt,
	"long":           types.Long,
	"unsigned long":  types.ULong,
}

// Target returns the target configuration with the command line settings
// of opts applied over c.
func (c *Config) Target(opts *Options) (types.TargetConfig, error) {
	cfg := types.TargetConfig{WordSize: c.MachineSize, CharIsSigned: true}
	if c.CharSigned != nil {
		cfg.CharIsSigned = *c.CharSigned
	}
	kind, ok := wcharKinds[c.WcharKind]
	if !ok {
		return cfg, errors.Errorf("unknown wchar_kind %q", c.WcharKind)
	}
	cfg.WcharKind = kind
	if opts.WordSize != 0 {
		cfg.WordSize = opts.WordSize
	}
	if opts.CharSigned != nil {
		cfg.CharIsSigned = *opts.CharSigned
	}
	return cfg, nil
}

// command splits the configured command line for tool.
func command(tool, line string) ([]string, error) {
	words, err := shellquote.Split(line)
	if err != nil {
		return nil, errors.Wrapf(err, "bad %s command %q", tool, line)
	}
	if len(words) == 0 {
		return nil, errors.Errorf("no %s configured", tool)
	}
	return words, nil
}
