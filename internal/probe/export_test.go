package probe

// SetColumnNameRaw assigns name to column i verbatim, skipping sanitization
// and the uniqueness pass. The quality score reflects whatever problems the
// name introduces; AutoFix repairs them.
func (p *SheetImportPlan) SetColumnNameRaw(i int, name string) error {
	if err := p.checkIndex(i); err != nil {
		return err
	}
	p.ensureBases()
	p.bases[i] = name
	p.Columns[i].SanitizedName = name
	p.Rescore()
	return nil
}
