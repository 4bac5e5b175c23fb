package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Two consecutive guards with the same return can be merged with ||.
	//   if a { return err }
	//   if b { return err }
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)
}

// errorTaxonomy keeps callers on errors.Is: every gateway error is wrapped with %w.
func errorTaxonomy(m dsl.Matcher) {
	m.Match(`$err == $pkg.$sentinel`, `$err != $pkg.$sentinel`).
		Where(m["sentinel"].Text.Matches(`^Err[A-Z]`) && m["err"].Type.Is(`error`)).
		Report(`compare wrapped errors with errors.Is($err, $pkg.$sentinel)`)

	m.Match(`fmt.Errorf($msg, $*_, $err.Error())`).
		Where(m["err"].Type.Is(`error`)).
		Report(`wrap $err with %w instead of formatting its message`)
}

// logging routes diagnostics through zerolog; stdout belongs to the CLI.
func logging(m dsl.Matcher) {
	m.Match(`fmt.Println($*_)`, `fmt.Printf($*_)`, `log.Println($*_)`, `log.Printf($*_)`).
		Where(!m.File().PkgPath.Matches(`/cmd/`)).
		Report(`use the injected zerolog.Logger instead of printing to stdout`)
}

// providerClients keeps SDK retries off; failures surface to the caller once.
func providerClients(m dsl.Matcher) {
	m.Import(`github.com/openai/openai-go/option`)

	m.Match(`option.WithMaxRetries($n)`).
		Where(m["n"].Value.Int() != 0).
		Report(`provider calls are never retried; use option.WithMaxRetries(0)`)
}
