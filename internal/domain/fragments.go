package domain

// fragmentLibrary holds statement snippets used by insertion and
// substitution when no donor is available. Free references are spelled
// __ref<N> and get bound to names visible at the insertion site.
var fragmentLibrary = []string{
	"__ref0 = __ref1;",
	"__ref0 = [__ref0, __ref1];",
	"__ref0 = { a: __ref0, b: 1 };",
	"__ref0.length = 0;",
	"__ref0[0] = __ref1;",
	"__ref0 = __ref0 + 1;",
	"__ref0 = typeof __ref1;",
	"if (__ref0) { __ref1 = __ref0; }",
	"for (let i = 0; i < 16; i++) { __ref0 = __ref1; }",
	"while (__ref0 && __ref0.length > 64) { __ref0 = __ref0.slice(1); }",
	"try { __ref0(__ref1); } catch (e) { __ref0 = e; }",
	"function f(a, b) { return a + b; }\n__ref0 = f(__ref0, __ref1);",
	"var g = function () { return __ref0; };\n__ref1 = g();",
	"var h = (x) => x * 2;\n__ref0 = h(__ref0);",
	"class C { constructor(v) { this.v = v; } get w() { return this.v; } }\n__ref0 = new C(__ref1).w;",
	"var o = { valueOf() { __ref0 = __ref1; return 0; } };\n__ref0 = o + 1;",
	"Object.defineProperty(__ref0, 'x', { get() { return __ref1; } });",
	"Array.prototype.push.call(__ref0, __ref1);",
	"__ref0 = __ref1 instanceof Object ? __ref1 : [__ref1];",
	"var p = new Proxy({}, { get(t, k) { return __ref0; } });\n__ref1 = p.x;",
	"__ref0 = JSON.parse(JSON.stringify([__ref1]));",
	"__ref0 = Array.from({ length: 8 }, (_, i) => i * __ref1);",
	"__ref0 = new Uint8Array(__ref1);",
	"__ref0 = String(__ref1).split('');",
	"switch (__ref0) { case 0: __ref1 = 1; break; default: __ref1 = 0; }",
	"do { __ref0--; } while (__ref0 > 0);",
	"typeof gc === 'function' && gc();",
}
