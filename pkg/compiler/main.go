// Package compiler is the C front end: a builtin preprocessor, a lexer and
// a recursive descent parser that type checks as it goes and builds an AST
// whose types are canonical in a types.Session.
//
// Pipeline: C source → Preprocess → Lex → Parse (with semantic checks) →
// TranslationUnit, which the backend lowers and the AST, fluffy and caml
// writers print.
package compiler
