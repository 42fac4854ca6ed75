// Package schema loads record types from YAML and provides the generic
// record implementation used by the multirow handler and the stores.
//
// A schema document lists types. Each type declares its fields, with a kind,
// an optional label, a required flag and value rules, and its relations to
// other types:
//
//	types:
//	  - name: Invoice
//	    fields:
//	      - {name: number, required: true, rules: {maxLength: 20}}
//	    relations:
//	      - {name: lines, kind: hasMany, target: InvoiceLine, foreignKey: invoiceId}
//	  - name: InvoiceLine
//	    fields:
//	      - {name: invoiceId}
//	      - {name: qty, kind: integer, required: true, rules: {min: 1}}
//
// Every record has an implicit string primary key named "id" that stores
// assign. Declaring a field named "id" is an error.
package schema
