package compiler

// BuiltinName is the file name builtin declarations are reported under.
const BuiltinName = "<builtin>"

// builtinSource is parsed ahead of the user's code when builtins are
// enabled. The inline definitions let the backend expand common libc calls
// without a library round trip; unused ones are dropped before emission.
const builtinSource = `
typedef __builtin_va_list __gnuc_va_list;

void *__builtin_alloca(unsigned int size);
void *__builtin_memcpy(void *dest, const void *src, unsigned int n);
void *__builtin_memset(void *s, int c, unsigned int n);
int __builtin_memcmp(const void *a, const void *b, unsigned int n);
unsigned int __builtin_strlen(const char *s);
int __builtin_strcmp(const char *a, const char *b);
char *__builtin_strcpy(char *dest, const char *src);
long __builtin_expect(long exp, long c);
void __builtin_trap(void);
void __builtin_abort(void);
double __builtin_fabs(double x);

static inline int __builtin_abs(int x)
{
	return x < 0 ? -x : x;
}

static inline long __builtin_labs(long x)
{
	return x < 0 ? -x : x;
}

static inline int __builtin_isdigit(int c)
{
	return c >= '0' && c <= '9';
}

static inline int __builtin_isspace(int c)
{
	return c == ' ' || (c >= '\t' && c <= '\r');
}
`

// ParseBuiltins parses the builtin declarations and marks them as such.
func (p *Parser) ParseBuiltins() {
	p.ParseSource(BuiltinName, builtinSource)
	p.MarkBuiltins()
	// the unit is named after the first user source
	p.unit.Name = ""
}
