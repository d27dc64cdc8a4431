package domain

// NodeCategory — категория типа узла.
type NodeCategory string

const (
	NodeCategoryTrigger   NodeCategory = "trigger"
	NodeCategoryAction    NodeCategory = "action"
	NodeCategoryLogic     NodeCategory = "logic"
	NodeCategoryOutput    NodeCategory = "output"
	NodeCategoryTransform NodeCategory = "transform"
)

// PropertyType — тип значения свойства узла.
type PropertyType string

const (
	PropertyString      PropertyType = "string"
	PropertyText        PropertyType = "text"
	PropertyNumber      PropertyType = "number"
	PropertyBoolean     PropertyType = "boolean"
	PropertySelect      PropertyType = "select"
	PropertyMultiSelect PropertyType = "multiSelect"
	PropertyJSON        PropertyType = "json"
	PropertyCode        PropertyType = "code"
	PropertyExpression  PropertyType = "expression"
	PropertyCredential  PropertyType = "credential"
)

// NodeDefinition — описание типа узла: handles и схема свойств.
//
// Это "чертёж" узла. Поведение типа живёт в пакете nodes,
// здесь — только данные, нужные валидатору и редактору.
type NodeDefinition struct {
	// ID — идентификатор типа (совпадает с FlowNode.Kind).
	ID string `json:"id"`

	// Name — отображаемое имя типа.
	Name string `json:"name"`

	// Description — описание типа.
	Description string `json:"description,omitempty"`

	// Category — категория (trigger, action, logic, output, transform).
	Category NodeCategory `json:"category"`

	// Version — версия определения.
	Version int `json:"version"`

	// Inputs — входные handles.
	Inputs []HandleDefinition `json:"inputs"`

	// Outputs — выходные handles.
	Outputs []HandleDefinition `json:"outputs"`

	// Properties — схема свойств.
	Properties []PropertyDefinition `json:"properties"`

	// Defaults — значения свойств по умолчанию.
	Defaults map[string]any `json:"defaults,omitempty"`
}

// Input возвращает входной handle по ID.
func (d *NodeDefinition) Input(id string) (*HandleDefinition, bool) {
	return findHandle(d.Inputs, id)
}

// Output возвращает выходной handle по ID.
func (d *NodeDefinition) Output(id string) (*HandleDefinition, bool) {
	return findHandle(d.Outputs, id)
}

// Property возвращает определение свойства по имени.
func (d *NodeDefinition) Property(name string) (*PropertyDefinition, bool) {
	for i := range d.Properties {
		if d.Properties[i].Name == name {
			return &d.Properties[i], true
		}
	}
	return nil, false
}

// IsTrigger возвращает true для типов категории trigger.
func (d *NodeDefinition) IsTrigger() bool {
	return d.Category == NodeCategoryTrigger
}

func findHandle(handles []HandleDefinition, id string) (*HandleDefinition, bool) {
	// Пустой handle допустим, если у типа ровно один handle этого направления.
	if id == "" && len(handles) == 1 {
		return &handles[0], true
	}
	for i := range handles {
		if handles[i].ID == id {
			return &handles[i], true
		}
	}
	return nil, false
}

// HandleDefinition — точка подключения рёбер.
type HandleDefinition struct {
	// ID — идентификатор handle в рамках типа узла.
	ID string `json:"id"`

	// Label — отображаемое имя.
	Label string `json:"label,omitempty"`

	// DataType — тип данных (информационно).
	DataType string `json:"dataType,omitempty"`

	// Multiple — допускает ли входной handle несколько рёбер.
	Multiple bool `json:"multiple,omitempty"`
}

// PropertyOption — вариант значения для select/multiSelect.
type PropertyOption struct {
	Name        string `json:"name"`
	Value       any    `json:"value"`
	Description string `json:"description,omitempty"`
}

// PropertyDefinition — определение настраиваемого свойства узла.
type PropertyDefinition struct {
	// Name — ключ в FlowNode.Properties.
	Name string `json:"name"`

	// DisplayName — отображаемое имя.
	DisplayName string `json:"displayName"`

	// Type — тип значения.
	Type PropertyType `json:"type"`

	// Description — описание.
	Description string `json:"description,omitempty"`

	// Required — обязательное ли свойство.
	Required bool `json:"required,omitempty"`

	// Default — значение по умолчанию.
	Default any `json:"default,omitempty"`

	// Placeholder — подсказка в редакторе.
	Placeholder string `json:"placeholder,omitempty"`

	// Options — допустимые значения для select/multiSelect.
	Options []PropertyOption `json:"options,omitempty"`
}
