package catalog

import "fmt"

// Tree — связи «категория → родитель». Проверяет, что переподвешивание не даст цикл.
type Tree struct {
	parent map[int64]int64
}

func NewTree(cats []Category) *Tree {
	t := &Tree{parent: make(map[int64]int64, len(cats))}
	for _, c := range cats {
		t.parent[c.ID] = c.ParentID
	}
	return t
}

func (t *Tree) Has(id int64) bool {
	_, ok := t.parent[id]
	return ok
}

// CheckParent — можно ли сделать parent родителем id. parent == 0 — в корень.
func (t *Tree) CheckParent(id, parent int64) error {
	if !t.Has(id) {
		return fmt.Errorf("%w: category %d", ErrNotFound, id)
	}
	if parent == 0 {
		return nil
	}
	if !t.Has(parent) {
		return fmt.Errorf("%w: parent category %d", ErrNotFound, parent)
	}
	// Поднимаемся от нового родителя: встретили id — цикл.
	seen := map[int64]bool{}
	for cur := parent; cur != 0; cur = t.parent[cur] {
		if cur == id {
			return fmt.Errorf("%w: %d cannot be placed under %d", ErrCategoryCycle, id, parent)
		}
		if seen[cur] {
			return fmt.Errorf("%w: existing loop at %d", ErrCategoryCycle, cur)
		}
		seen[cur] = true
	}
	return nil
}

func (t *Tree) SetParent(id, parent int64) error {
	if err := t.CheckParent(id, parent); err != nil {
		return err
	}
	t.parent[id] = parent
	return nil
}

// Ancestors — от непосредственного родителя до корня.
func (t *Tree) Ancestors(id int64) []int64 {
	var out []int64
	seen := map[int64]bool{id: true}
	for cur := t.parent[id]; cur != 0 && !seen[cur]; cur = t.parent[cur] {
		seen[cur] = true
		out = append(out, cur)
	}
	return out
}

// Descendants — все потомки id (в ширину).
func (t *Tree) Descendants(id int64) []int64 {
	children := map[int64][]int64{}
	for c, p := range t.parent {
		children[p] = append(children[p], c)
	}
	var out []int64
	queue := []int64{id}
	seen := map[int64]bool{id: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range children[cur] {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}
