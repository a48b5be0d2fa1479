// Copyright (c) 2026 The HCX Platform Authors
// SPDX-License-Identifier: BSD-2-Clause

// Package commands implements the hcx-node command line.
//
//	hcx-node serve             run the participant node
//	hcx-node keygen            write a development key pair
//	hcx-node envelope decrypt  open an envelope with a private key
//	hcx-node envelope inspect  print an envelope's exchange headers
package commands
