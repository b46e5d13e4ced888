// Command ccompiler dumps each front end stage for one C file: the
// preprocessed text, the tokens, and every declaration with its canonical
// type. It is a debugging aid; cfront itself is the compiler.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"cfront/pkg/compiler"
	"cfront/pkg/types"
)

const testSource = `typedef unsigned int uint;
struct pair { int a, b; };
uint sum(struct pair *p) { return p->a + p->b; }
`

func main() {
	var (
		noSource = flag.Bool("no-source", false, "don't print the preprocessed source")
		noTokens = flag.Bool("no-tokens", false, "don't print the token stream")
		builtins = flag.Bool("builtins", false, "parse the builtin declarations too")
		defines  = flag.StringArrayP("define", "D", nil, "predefine `macro`")
		includes = flag.StringArrayP("include-dir", "I", nil, "add `dir` to the include path")
	)
	flag.Parse()
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	name, src := "<test>", testSource
	if flag.NArg() > 0 {
		name = flag.Arg(0)
		data, err := os.ReadFile(name)
		if err != nil {
			log.WithError(err).Fatal("read error")
		}
		src = string(data)
	}

	// Preprocess
	src, err := compiler.Preprocess(name, src, compiler.PreprocessOptions{
		IncludeDirs: *includes,
		Defines:     *defines,
	})
	if err != nil {
		log.WithError(err).Fatal("preprocess error")
	}
	if !*noSource {
		fmt.Printf("Source:\n%s\n", src)
	}

	// Lex
	diag := compiler.NewDiagnostics(os.Stderr)
	tokens := compiler.LexFile(name, src, types.DefaultDialect, diag)
	if !*noTokens {
		fmt.Printf("Tokens (%d)\n", len(tokens))
		for _, tok := range tokens {
			fmt.Println(" ", tok)
		}
		fmt.Println()
	}
	if diag.HasErrors() {
		log.Fatal("lex error")
	}

	// Parse
	tgt, err := types.NewTarget(types.DefaultTargetConfig())
	if err != nil {
		log.WithError(err).Fatal("target")
	}
	sess := types.NewSession(tgt)
	defer sess.Close()
	unit, diag, err := compiler.Compile(sess, name, src, compiler.Options{
		Dialect:  types.DefaultDialect,
		Builtins: *builtins,
	}, os.Stderr)
	if err != nil {
		log.WithError(err).Error("parse error")
	}

	fmt.Println("Declarations")
	for _, d := range unit.Decls[unit.Builtins:] {
		fmt.Println(" ", d)
		if t := declType(d); t != nil {
			fmt.Printf("    canonical %p  size %d  %s\n", t, sizeOf(sess, t), types.TypeString(sess.SkipTyperef(t)))
		}
	}
	fmt.Println()
	fmt.Printf("%d canonical types, %s\n", sess.Len(), orNone(diag.Summary()))
	if err != nil {
		os.Exit(1)
	}
}

func declType(d compiler.Stmt) *types.Type {
	switch d := d.(type) {
	case *compiler.VariableDecl:
		return d.Type
	case *compiler.FunctionDecl:
		return d.Type
	case *compiler.TypedefStmt:
		return d.Decl.Type
	case *compiler.TagDecl:
		return d.Type
	}
	return nil
}

// sizeOf is -1 for types without a size.
func sizeOf(sess *types.Session, t *types.Type) int {
	if types.IsFunction(sess.SkipTyperef(t)) || sess.IsIncomplete(t) {
		return -1
	}
	return sess.SizeOf(t)
}

func orNone(summary string) string {
	if summary == "" {
		return "no diagnostics"
	}
	return summary
}
