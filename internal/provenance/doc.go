// Package provenance decides why a stock change happened.
//
// Classification is a pure function of an execution-context descriptor.
// The first matching rule wins:
//
//  1. order-stock reduction      -> order, "Order #N"
//  2. order-stock restoration    -> restore, "Restore from order #N"
//  3. programmatic/API request   -> programmatic, built from method+route or path
//  4. bulk variation save        -> manual, "Manual edit: bulk variation save"
//  5. single-entity edit form    -> manual, "Manual edit: entity edit page"
//  6. any other admin context    -> manual, "Manual edit: admin panel"
//  7. no admin context           -> manual, "Manual edit"
//
// System actions (orders and restorations) are checked first so they are
// never credited to a manual edit.
//
// The Resolver adds an optional source location. It only walks the call
// stack when tracing is enabled in the stored settings.
package provenance
