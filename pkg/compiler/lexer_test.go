package compiler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfront/pkg/types"
)

type lexed struct {
	tt     TokenType
	lexeme string
}

func kinds(toks []Token) []lexed {
	out := make([]lexed, len(toks))
	for i, t := range toks {
		out[i] = lexed{t.Type, t.Lexeme}
	}
	return out
}

func TestLex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []lexed
		wantErr  bool
	}{
		{
			name:  "declaration",
			input: "int x = 42;",
			expected: []lexed{
				{INT, "int"}, {IDENTIFIER, "x"}, {ASSIGN, "="}, {INTEGER, "42"}, {SEMICOLON, ";"}, {EOF, ""},
			},
		},
		{
			name:  "operators",
			input: "a += b << 2 >>= c -> d ... != &&",
			expected: []lexed{
				{IDENTIFIER, "a"}, {PLUS_ASSIGN, "+="}, {IDENTIFIER, "b"}, {SHL_OP, "<<"}, {INTEGER, "2"},
				{SHR_ASSIGN, ">>="}, {IDENTIFIER, "c"}, {ARROW, "->"}, {IDENTIFIER, "d"},
				{ELLIPSIS, "..."}, {NOT_EQ, "!="}, {AND_LOGICAL, "&&"}, {EOF, ""},
			},
		},
		{
			name:  "numbers keep their suffix",
			input: "0x1F 10UL 1.5f .5 2e10",
			expected: []lexed{
				{INTEGER, "0x1F"}, {INTEGER, "10UL"}, {FLOAT_LIT, "1.5f"}, {FLOAT_LIT, ".5"}, {FLOAT_LIT, "2e10"}, {EOF, ""},
			},
		},
		{
			name:  "character literals fold to integers",
			input: `'A' '\n' '\x41' '\101' L'a'`,
			expected: []lexed{
				{INTEGER, "65"}, {INTEGER, "10"}, {INTEGER, "65"}, {INTEGER, "65"}, {INTEGER, "97"}, {EOF, ""},
			},
		},
		{
			name:  "strings resolve escapes",
			input: `"hi\tthere\"" "a\
b"`,
			expected: []lexed{
				{STRING, "hi\tthere\""}, {STRING, "ab"}, {EOF, ""},
			},
		},
		{
			name:  "comments are skipped",
			input: "x /* block\n comment */ y // line\nz",
			expected: []lexed{
				{IDENTIFIER, "x"}, {IDENTIFIER, "y"}, {IDENTIFIER, "z"}, {EOF, ""},
			},
		},
		{
			name:  "gnu keywords",
			input: "__typeof__ __attribute__ __inline__ _Bool",
			expected: []lexed{
				{TYPEOF, "__typeof__"}, {ATTRIBUTE, "__attribute__"}, {INLINE, "__inline__"}, {BOOL, "_Bool"}, {EOF, ""},
			},
		},
		{name: "unterminated comment", input: "x /* never closed", wantErr: true},
		{name: "unterminated string", input: "\"abc\n\"", wantErr: true},
		{name: "empty char", input: "''", wantErr: true},
		{name: "bad escape", input: `'\q'`, wantErr: true},
		{name: "bad suffix", input: "12abc", wantErr: true},
		{name: "stray character", input: "a @ b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := Lex(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, kinds(toks))
		})
	}
}

func TestLexDialectKeywords(t *testing.T) {
	diag := NewDiagnostics(nil)
	c89 := LexFile("t.c", "inline restrict typeof", types.C89, diag)
	assert.Equal(t, []lexed{{IDENTIFIER, "inline"}, {IDENTIFIER, "restrict"}, {IDENTIFIER, "typeof"}, {EOF, ""}}, kinds(c89))

	c99 := LexFile("t.c", "inline restrict typeof", types.C89|types.C99, diag)
	assert.Equal(t, []lexed{{INLINE, "inline"}, {RESTRICT, "restrict"}, {IDENTIFIER, "typeof"}, {EOF, ""}}, kinds(c99))

	ms := LexFile("t.c", "__stdcall __cdecl", types.C89|types.MS, diag)
	assert.Equal(t, []lexed{{STDCALL, "__stdcall"}, {CDECL, "__cdecl"}, {EOF, ""}}, kinds(ms))
	assert.False(t, diag.HasErrors())
}

func TestLexLineMarkers(t *testing.T) {
	src := "a\n# 40 \"inc.h\"\nb\nc\n#pragma pack\nd"
	toks := LexFile("main.c", src, types.DefaultDialect, NewDiagnostics(nil))
	require.Len(t, toks, 5)

	assert.Equal(t, Token{Type: IDENTIFIER, Lexeme: "a", Line: 1, File: "main.c"}, toks[0])
	assert.Equal(t, Token{Type: IDENTIFIER, Lexeme: "b", Line: 40, File: "inc.h"}, toks[1])
	assert.Equal(t, 41, toks[2].Line)
	assert.Equal(t, "d", toks[3].Lexeme)
	assert.Equal(t, 43, toks[3].Line)
}

func TestLexFileRecovers(t *testing.T) {
	var out bytes.Buffer
	diag := NewDiagnostics(&out)
	toks := LexFile("bad.c", "int @ x;\n'' y;", types.DefaultDialect, diag)

	assert.Equal(t, 2, diag.ErrorCount())
	assert.Equal(t, []lexed{{INT, "int"}, {IDENTIFIER, "x"}, {SEMICOLON, ";"}, {IDENTIFIER, "y"}, {SEMICOLON, ";"}, {EOF, ""}}, kinds(toks))
	assert.Contains(t, out.String(), "bad.c:1: error: unexpected character '@'")
	assert.Contains(t, out.String(), "bad.c:2: error: empty character literal")
}

func TestOpText(t *testing.T) {
	assert.Equal(t, "<<=", OpText(SHL_ASSIGN))
	assert.Equal(t, "!=", OpText(NOT_EQ))
	assert.Equal(t, "SEMICOLON", SEMICOLON.String())
}
