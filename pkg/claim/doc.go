// Copyright (c) 2026 The HCX Platform Authors
// SPDX-License-Identifier: BSD-2-Clause

/*
Package claim provides the claim documents submitted over the HCX exchange.

A claim document is treated as an opaque JSON structure with a collection of
typed entries. Only two entries are addressed directly: the one whose
resource type is "Patient" and the one whose resource type is "Preauth".
Everything else in the document is carried through untouched.

# Templates

A [Template] is the canonical document every submission starts from. It is
loaded once at startup and never written afterwards:

	tmpl, err := claim.LoadTemplate("/etc/hcx/preauth.json")
	// or the built-in template
	tmpl := claim.DefaultTemplate()

[Template.Document] hands out a deep copy, so a submission can never write
through to the shared template or to another submission's document.

# Composition

[Compose] applies caller-supplied fields onto a fresh copy:

	amount := claim.Amount(500)
	doc := claim.Compose(tmpl, claim.Fields{
	    Name:   "Asha",
	    Gender: "female",
	    Amount: &amount,
	})

Fields left empty keep the template value. A template lacking the Patient or
Preauth entry is not an error; the corresponding fields are skipped.
*/
package claim
