package internal

// Class is the single class of a compilation. It owns every declaration and every symbol
// table; nodes and tables refer to them by DeclID and TableID.
type Class struct {
	Name   string
	Pos    Position
	Global TableID

	decls  []Decl
	tables []SymbolTable
}

// SymbolTable is an ordered list of declarations plus the enclosing table. Order matters,
// fields, methods and local slots are emitted in declaration order.
type SymbolTable struct {
	Parent TableID
	Decls  []DeclID
	// Owner is the procedure owning a local table, NoDecl for the class table.
	Owner DeclID
}

func NewClass(name string, pos Position) *Class {
	class := &Class{Name: name, Pos: pos}
	class.Global = class.NewTable(NoTable, NoDecl)
	return class
}

func (class *Class) NewTable(parent TableID, owner DeclID) TableID {
	class.tables = append(class.tables, SymbolTable{Parent: parent, Owner: owner})
	return TableID(len(class.tables))
}

func (class *Class) Table(id TableID) *SymbolTable {
	return &class.tables[id-1]
}

func (class *Class) Decl(id DeclID) *Decl {
	return &class.decls[id-1]
}

// NumDecls returns the size of the declaration arena, valid ids are 1..NumDecls.
func (class *Class) NumDecls() int {
	return len(class.decls)
}

// Declare adds decl to the table. Values are unique by name within a table and procedures
// are unique by name and arity.
func (class *Class) Declare(table TableID, decl Decl) (DeclID, error) {
	for _, id := range class.Table(table).Decls {
		existing := class.Decl(id)
		if existing.Name != decl.Name || existing.IsValue() != decl.IsValue() {
			continue
		}
		if decl.Kind == ProcedureDecl {
			if existing.Arity() != decl.Arity() {
				continue
			}
			return NoDecl, makeNamedError(Redefinition, decl.Pos, decl.Name,
				"procedure %s with %d parameters is already defined at %s", decl.Name, decl.Arity(), existing.Pos)
		}
		return NoDecl, makeNamedError(Redefinition, decl.Pos, decl.Name, "%s %s is already defined at %s",
			existing.Kind, decl.Name, existing.Pos)
	}
	decl.Table = table
	class.decls = append(class.decls, decl)
	id := DeclID(len(class.decls))
	t := class.Table(table)
	t.Decls = append(t.Decls, id)
	return id, nil
}

// LookupValue searches table and its enclosing tables for a constant, variable or parameter.
func (class *Class) LookupValue(table TableID, name string) DeclID {
	for ; table != NoTable; table = class.Table(table).Parent {
		for _, id := range class.Table(table).Decls {
			decl := class.Decl(id)
			if decl.IsValue() && decl.Name == name {
				return id
			}
		}
	}
	return NoDecl
}

// LookupProcedure searches table and its enclosing tables for a procedure with the given arity.
func (class *Class) LookupProcedure(table TableID, name string, arity int) DeclID {
	for ; table != NoTable; table = class.Table(table).Parent {
		for _, id := range class.Table(table).Decls {
			decl := class.Decl(id)
			if decl.Kind == ProcedureDecl && decl.Name == name && decl.Arity() == arity {
				return id
			}
		}
	}
	return NoDecl
}

// Members returns the declarations of the class table in declaration order.
func (class *Class) Members() []DeclID {
	return class.Table(class.Global).Decls
}

// Procedures returns the procedures of the class in declaration order.
func (class *Class) Procedures() []DeclID {
	return class.membersOfKind(ProcedureDecl)
}

// Constants returns the constants of the class in declaration order.
func (class *Class) Constants() []DeclID {
	return class.membersOfKind(ConstantDecl)
}

func (class *Class) membersOfKind(kind DeclKind) []DeclID {
	var ret []DeclID
	for _, id := range class.Members() {
		if class.Decl(id).Kind == kind {
			ret = append(ret, id)
		}
	}
	return ret
}

// LocalVariables returns the local variables of a procedure, parameters excluded.
func (class *Class) LocalVariables(proc DeclID) []DeclID {
	var ret []DeclID
	for _, id := range class.Table(class.Decl(proc).Locals).Decls {
		if class.Decl(id).Kind == VariableDecl {
			ret = append(ret, id)
		}
	}
	return ret
}

// IsLocal reports whether decl is a parameter or a variable of a procedure.
func (class *Class) IsLocal(id DeclID) bool {
	decl := class.Decl(id)
	return decl.Kind == ParameterDecl || (decl.Kind == VariableDecl && decl.Table != class.Global)
}
